package fez

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary or weight value the API sends either as a JSON
// number or as a numeric string.
type Amount float64

// UnmarshalJSON accepts numbers, numeric strings and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*a = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*a = Amount(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount: unsupported value %s", data)
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("amount: %q is not a number", s)
	}
	*a = Amount(f)
	return nil
}

// Float64 returns the amount as a float64.
func (a Amount) Float64() float64 {
	return float64(a)
}

// CostDetail is a cost record as it appears inside each response shape.
type CostDetail struct {
	Cost  Amount `json:"cost"`
	State string `json:"state,omitempty"`
}

// CostShape is one of the shapes the cost endpoint answers with:
// FlatCost, ListedCost or LockerCost.
type CostShape interface {
	isCostShape()
}

// FlatCost is `"Cost": {...}`.
type FlatCost struct {
	Detail CostDetail
}

// ListedCost is `"Cost": [{...}, ...]`; the first entry applies.
type ListedCost struct {
	Details []CostDetail
}

// LockerCost is `"cost": {...}` or `"cost": N`, returned for locker pricing.
type LockerCost struct {
	Detail CostDetail
}

func (FlatCost) isCostShape()   {}
func (ListedCost) isCostShape() {}
func (LockerCost) isCostShape() {}

// NormalizeCost reduces any cost shape to a single CostDetail.
func NormalizeCost(shape CostShape) (CostDetail, error) {
	switch s := shape.(type) {
	case FlatCost:
		return s.Detail, nil
	case ListedCost:
		if len(s.Details) == 0 {
			return CostDetail{}, fmt.Errorf("cost list is empty")
		}
		return s.Details[0], nil
	case LockerCost:
		return s.Detail, nil
	case nil:
		return CostDetail{}, fmt.Errorf("response carries no cost")
	default:
		return CostDetail{}, fmt.Errorf("unknown cost shape %T", shape)
	}
}

// CostResponse is the pricing result.
type CostResponse struct {
	Status      string
	Description string
	Cost        CostShape
}

// UnmarshalJSON detects the cost shape. Keys are matched exactly since the
// API distinguishes "Cost" from "cost".
func (r *CostResponse) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = CostResponse{}

	if v, ok := raw["status"]; ok {
		if err := json.Unmarshal(v, &r.Status); err != nil {
			return fmt.Errorf("status: %w", err)
		}
	}
	if v, ok := raw["description"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &r.Description); err != nil {
			// Some error bodies carry a structured description.
			r.Description = string(v)
		}
	}

	if v, ok := raw["Cost"]; ok && !isNull(v) {
		shape, err := decodeCapitalCost(v)
		if err != nil {
			return err
		}
		r.Cost = shape
		return nil
	}
	if v, ok := raw["cost"]; ok && !isNull(v) {
		detail, err := decodeDetail(v)
		if err != nil {
			return err
		}
		r.Cost = LockerCost{Detail: detail}
	}
	return nil
}

func decodeCapitalCost(v json.RawMessage) (CostShape, error) {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var details []CostDetail
		if err := json.Unmarshal(trimmed, &details); err != nil {
			return nil, fmt.Errorf("Cost: %w", err)
		}
		return ListedCost{Details: details}, nil
	}
	detail, err := decodeDetail(trimmed)
	if err != nil {
		return nil, err
	}
	return FlatCost{Detail: detail}, nil
}

// decodeDetail reads an object, or a bare amount as the cost.
func decodeDetail(v json.RawMessage) (CostDetail, error) {
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var d CostDetail
		if err := json.Unmarshal(trimmed, &d); err != nil {
			return CostDetail{}, fmt.Errorf("cost: %w", err)
		}
		return d, nil
	}
	var a Amount
	if err := json.Unmarshal(trimmed, &a); err != nil {
		return CostDetail{}, fmt.Errorf("cost: %w", err)
	}
	return CostDetail{Cost: a}, nil
}
