package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// VariableType тип шаблонной переменной промпта
type VariableType string

const (
	VariableText   VariableType = "text"
	VariableNumber VariableType = "number"
	VariableSelect VariableType = "select"
)

// Variable представляет одну типизированную переменную промпта.
// Полезная нагрузка зависит от типа: placeholder для text,
// min/max для number, options для select.
type Variable struct {
	Name        string       `json:"name" validate:"required,max=100"`
	Type        VariableType `json:"type" validate:"required,oneof=text number select"`
	Placeholder string       `json:"placeholder,omitempty"`
	Min         *float64     `json:"min,omitempty"`
	Max         *float64     `json:"max,omitempty"`
	Options     []string     `json:"options,omitempty" validate:"omitempty,dive,max=200"`
}

// Validate проверяет согласованность переменной с её типом
func (v Variable) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("variable name is required")
	}

	switch v.Type {
	case VariableText:
		if len(v.Options) > 0 {
			return fmt.Errorf("variable %q: options are not allowed for text type", v.Name)
		}
		if v.Min != nil || v.Max != nil {
			return fmt.Errorf("variable %q: min/max are not allowed for text type", v.Name)
		}
	case VariableNumber:
		if len(v.Options) > 0 {
			return fmt.Errorf("variable %q: options are not allowed for number type", v.Name)
		}
		if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
			return fmt.Errorf("variable %q: min is greater than max", v.Name)
		}
	case VariableSelect:
		if len(v.Options) == 0 {
			return fmt.Errorf("variable %q: select type requires at least one option", v.Name)
		}
		if v.Min != nil || v.Max != nil {
			return fmt.Errorf("variable %q: min/max are not allowed for select type", v.Name)
		}
	default:
		return fmt.Errorf("variable %q: unknown type %q", v.Name, v.Type)
	}

	return nil
}

// Variables набор переменных промпта, хранится одной JSONB-колонкой
type Variables []Variable

// Validate проверяет все переменные и уникальность имен
func (vs Variables) Validate() error {
	seen := make(map[string]bool, len(vs))
	for _, v := range vs {
		if err := v.Validate(); err != nil {
			return err
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate variable name %q", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

func (vs Variables) Value() (driver.Value, error) {
	if vs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(vs)
}

func (vs *Variables) Scan(src interface{}) error {
	if src == nil {
		*vs = nil
		return nil
	}

	var data []byte
	switch t := src.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return fmt.Errorf("unsupported type %T for variables", src)
	}

	return json.Unmarshal(data, vs)
}
