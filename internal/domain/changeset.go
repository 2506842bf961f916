package domain

import "encoding/json"

// FieldChange представляет одно поле частичного обновления.
// В отличие от указателя, различает три состояния: поле не передано,
// передан явный null и передано значение.
type FieldChange[T any] struct {
	present bool
	null    bool
	value   T
}

// Set возвращает FieldChange с установленным значением
func Set[T any](value T) FieldChange[T] {
	return FieldChange[T]{present: true, value: value}
}

// SetNull возвращает FieldChange с явным null
func SetNull[T any]() FieldChange[T] {
	return FieldChange[T]{present: true, null: true}
}

// IsSet сообщает, было ли поле передано в запросе
func (c FieldChange[T]) IsSet() bool {
	return c.present
}

// IsNull сообщает, был ли передан явный null
func (c FieldChange[T]) IsNull() bool {
	return c.present && c.null
}

// Value возвращает значение поля; второй результат false,
// если поле не передано или передан null
func (c FieldChange[T]) Value() (T, bool) {
	if !c.present || c.null {
		var zero T
		return zero, false
	}
	return c.value, true
}

func (c *FieldChange[T]) UnmarshalJSON(data []byte) error {
	c.present = true
	if string(data) == "null" {
		c.null = true
		return nil
	}
	return json.Unmarshal(data, &c.value)
}

func (c FieldChange[T]) MarshalJSON() ([]byte, error) {
	if !c.present || c.null {
		return []byte("null"), nil
	}
	return json.Marshal(c.value)
}
