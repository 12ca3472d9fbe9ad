package pattern

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// wireExpression is the serialized form of an Expression, shared by the
// JSON store/API representation and the YAML intent-set files.
type wireExpression struct {
	Type string `json:"type" yaml:"type"`

	Gesture       string  `json:"gesture,omitempty" yaml:"gesture,omitempty"`
	Hand          string  `json:"hand,omitempty" yaml:"hand,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`

	Finger    string  `json:"finger,omitempty" yaml:"finger,omitempty"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`

	Primary bool `json:"primary,omitempty" yaml:"primary,omitempty"`

	Children []wireExpression `json:"children,omitempty" yaml:"children,omitempty"`

	A *wireExpression `json:"a,omitempty" yaml:"a,omitempty"`
	B *wireExpression `json:"b,omitempty" yaml:"b,omitempty"`
}

const (
	wireGesture       = "gesture"
	wirePinch         = "pinch"
	wireAnyOf         = "any_of"
	wireAllOf         = "all_of"
	wireBidirectional = "bidirectional"
)

func toWire(e *Expression) wireExpression {
	w := wireExpression{Primary: e.Primary}
	switch e.Kind {
	case KindGesture:
		w.Type = wireGesture
		w.Gesture = e.GestureLabel
		w.Hand = string(e.HandFilter)
		w.MinConfidence = e.MinConfidence
	case KindPinch:
		w.Type = wirePinch
		w.Finger = string(e.Finger)
		w.Hand = string(e.HandFilter)
		w.Threshold = e.DistanceThreshold
	case KindAnyOf, KindAllOf:
		if e.Kind == KindAnyOf {
			w.Type = wireAnyOf
		} else {
			w.Type = wireAllOf
		}
		w.Children = make([]wireExpression, len(e.Children))
		for i := range e.Children {
			w.Children[i] = toWire(&e.Children[i])
		}
	case KindBidirectional:
		// The desugared Children are regenerated on decode; only the two
		// operands travel on the wire.
		w.Type = wireBidirectional
		a := toWire(e.A)
		b := toWire(e.B)
		w.A = &a
		w.B = &b
	}
	return w
}

func fromWire(w *wireExpression) (Expression, error) {
	switch w.Type {
	case wireGesture:
		e := Gesture(w.Gesture, handFilterFromWire(w.Hand), w.MinConfidence)
		e.Primary = w.Primary
		return e, nil
	case wirePinch:
		e := Pinch(Finger(w.Finger), handFilterFromWire(w.Hand), w.Threshold)
		e.Primary = w.Primary
		return e, nil
	case wireAnyOf, wireAllOf:
		children := make([]Expression, 0, len(w.Children))
		for i := range w.Children {
			c, err := fromWire(&w.Children[i])
			if err != nil {
				return Expression{}, err
			}
			children = append(children, c)
		}
		var e Expression
		if w.Type == wireAnyOf {
			e = AnyOf(children...)
		} else {
			e = AllOf(children...)
		}
		e.Primary = w.Primary
		return e, nil
	case wireBidirectional:
		if w.A == nil || w.B == nil {
			return Expression{}, fmt.Errorf("pattern: bidirectional requires both operands")
		}
		a, err := fromWire(w.A)
		if err != nil {
			return Expression{}, err
		}
		b, err := fromWire(w.B)
		if err != nil {
			return Expression{}, err
		}
		e := Bidirectional(a, b)
		e.Primary = w.Primary
		return e, nil
	default:
		return Expression{}, fmt.Errorf("pattern: unknown expression type %q", w.Type)
	}
}

func handFilterFromWire(s string) HandFilter {
	if s == "" {
		return AnyHand
	}
	return HandFilter(s)
}

// MarshalJSON encodes the expression in its wire form.
func (e Expression) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(&e))
}

// UnmarshalJSON decodes an expression from its wire form.
func (e *Expression) UnmarshalJSON(data []byte) error {
	var w wireExpression
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := fromWire(&w)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// MarshalYAML encodes the expression in its wire form.
func (e Expression) MarshalYAML() (interface{}, error) {
	return toWire(&e), nil
}

// UnmarshalYAML decodes an expression from its wire form.
func (e *Expression) UnmarshalYAML(value *yaml.Node) error {
	var w wireExpression
	if err := value.Decode(&w); err != nil {
		return err
	}
	decoded, err := fromWire(&w)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// Validate checks the expression's structural well-formedness. A malformed
// expression is a configure-time error; per-frame evaluation never sees one.
func (e *Expression) Validate() error {
	switch e.Kind {
	case KindGesture:
		if e.GestureLabel == "" {
			return fmt.Errorf("pattern: gesture leaf requires a label")
		}
		if e.MinConfidence < 0 || e.MinConfidence > 1 {
			return fmt.Errorf("pattern: min_confidence %v outside [0,1]", e.MinConfidence)
		}
		return validateHandFilter(e.HandFilter)
	case KindPinch:
		switch e.Finger {
		case Index, Middle, Ring, Pinky:
		default:
			return fmt.Errorf("pattern: unknown finger %q", e.Finger)
		}
		if e.DistanceThreshold < 0 {
			return fmt.Errorf("pattern: negative pinch threshold %v", e.DistanceThreshold)
		}
		return validateHandFilter(e.HandFilter)
	case KindAnyOf, KindAllOf:
		if len(e.Children) == 0 {
			return fmt.Errorf("pattern: combinator requires at least one child")
		}
		if e.Kind == KindAllOf {
			primaries := 0
			for i := range e.Children {
				if e.Children[i].Primary {
					primaries++
				}
			}
			if primaries > 1 {
				return fmt.Errorf("pattern: all_of has %d primary children, want at most one", primaries)
			}
		}
		for i := range e.Children {
			if err := e.Children[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	case KindBidirectional:
		if e.A == nil || e.B == nil {
			return fmt.Errorf("pattern: bidirectional requires both operands")
		}
		if err := e.A.Validate(); err != nil {
			return err
		}
		return e.B.Validate()
	default:
		return fmt.Errorf("pattern: unknown expression kind %d", e.Kind)
	}
}

func validateHandFilter(f HandFilter) error {
	switch f {
	case AnyHand, LeftHand, RightHand, "":
		return nil
	default:
		return fmt.Errorf("pattern: unknown hand filter %q", f)
	}
}
