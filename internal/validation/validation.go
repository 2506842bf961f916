// Package validation содержит общий валидатор входных данных HTTP-запросов
package validation

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// ValidateStruct проверяет структуру запроса по validate-тегам
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
