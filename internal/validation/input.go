package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinDescriptionLength = 10
	MaxDescriptionLength = 5000
	MaxCommentLength     = 2000
	MaxServiceTypeLength = 100
	MaxCityLength        = 100
	MinBudget            = 0.0
	MaxBudget            = 1000000.0
	MaxDelayDays         = 365
	MinDifficulty        = 1
	MaxDifficulty        = 5
	MinRating            = 1
	MaxRating            = 5
)

// Страны присутствия платформы (ISO 3166-1 alpha-2).
var supportedCountries = map[string]bool{
	"FR": true, "BE": true, "CH": true, "LU": true, "MC": true,
	"DE": true, "ES": true, "IT": true, "PT": true, "GB": true,
	"MA": true, "TN": true, "DZ": true, "SN": true, "CI": true,
}

// ValidateLength проверяет длину строки в рунах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	localRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !localRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateCountry проверяет код страны присутствия платформы.
func ValidateCountry(country string) error {
	code := strings.ToUpper(strings.TrimSpace(country))
	if code == "" {
		return fmt.Errorf("страна обязательна")
	}
	if !supportedCountries[code] {
		return fmt.Errorf("страна %q не поддерживается платформой", country)
	}
	return nil
}

// ValidateCountries проверяет список стран работы исполнителя.
func ValidateCountries(countries []string) error {
	if len(countries) == 0 {
		return fmt.Errorf("укажите хотя бы одну страну работы")
	}
	seen := make(map[string]bool)
	for _, c := range countries {
		if err := ValidateCountry(c); err != nil {
			return err
		}
		code := strings.ToUpper(strings.TrimSpace(c))
		if seen[code] {
			return fmt.Errorf("страна %q указана дважды", c)
		}
		seen[code] = true
	}
	return nil
}

// ValidateDescription проверяет описание заявки.
func ValidateDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание заявки обязательно")
	}
	return ValidateLength("описание заявки", strings.TrimSpace(description), MinDescriptionLength, MaxDescriptionLength)
}

// ValidateServiceType проверяет тип услуги.
func ValidateServiceType(serviceType string) error {
	if strings.TrimSpace(serviceType) == "" {
		return fmt.Errorf("тип услуги обязателен")
	}
	return ValidateLength("тип услуги", serviceType, 0, MaxServiceTypeLength)
}

// ValidateBudget проверяет бюджет заявки.
func ValidateBudget(budget *float64) error {
	if budget == nil {
		return nil
	}
	if *budget < MinBudget {
		return fmt.Errorf("бюджет не может быть отрицательным")
	}
	if *budget > MaxBudget {
		return fmt.Errorf("бюджет не может превышать %.0f", MaxBudget)
	}
	return nil
}

// ValidatePrice проверяет цену предложения.
func ValidatePrice(price float64) error {
	if price <= 0 {
		return fmt.Errorf("цена должна быть положительной")
	}
	if price > MaxBudget {
		return fmt.Errorf("цена не может превышать %.0f", MaxBudget)
	}
	return nil
}

// ValidateDelayDays проверяет срок выполнения в днях.
func ValidateDelayDays(days int) error {
	if days <= 0 {
		return fmt.Errorf("срок выполнения должен быть положительным")
	}
	if days > MaxDelayDays {
		return fmt.Errorf("срок выполнения не может превышать %d дней", MaxDelayDays)
	}
	return nil
}

// ValidateDifficulty проверяет самооценку сложности предложения.
func ValidateDifficulty(difficulty int) error {
	if difficulty < MinDifficulty || difficulty > MaxDifficulty {
		return fmt.Errorf("сложность должна быть от %d до %d", MinDifficulty, MaxDifficulty)
	}
	return nil
}

// ValidateRating проверяет оценку.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("оценка должна быть от %d до %d", MinRating, MaxRating)
	}
	return nil
}

// ValidateComment проверяет необязательный комментарий.
func ValidateComment(comment *string) error {
	if comment == nil || *comment == "" {
		return nil
	}
	return ValidateLength("комментарий", strings.TrimSpace(*comment), 0, MaxCommentLength)
}

// ValidateSpecialties проверяет список специальностей исполнителя.
func ValidateSpecialties(specialties []string) error {
	if len(specialties) == 0 {
		return fmt.Errorf("укажите хотя бы одну специальность")
	}
	seen := make(map[string]bool)
	for _, s := range specialties {
		s = strings.TrimSpace(s)
		if s == "" {
			return fmt.Errorf("специальность не может быть пустой")
		}
		lower := strings.ToLower(s)
		if seen[lower] {
			return fmt.Errorf("специальность '%s' указана дважды", s)
		}
		seen[lower] = true
	}
	return nil
}

// ValidateExperienceYears проверяет заявленный опыт.
func ValidateExperienceYears(years int) error {
	if years < 0 {
		return fmt.Errorf("опыт не может быть отрицательным")
	}
	if years > 60 {
		return fmt.Errorf("опыт выглядит нереалистичным")
	}
	return nil
}
