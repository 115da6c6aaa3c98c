// format.go — нормализация номера управления, телефона и почтового индекса.
package validation

import "strings"

// NormalizeManagementID принимает «URC» (в любом регистре) и ровно 7 цифр.
// Возвращает номер в верхнем регистре.
func NormalizeManagementID(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if len(s) != len(managementPrefix)+managementDigitLength {
		return "", false
	}
	if !strings.EqualFold(s[:len(managementPrefix)], managementPrefix) {
		return "", false
	}
	digits := s[len(managementPrefix):]
	if !isASCIIDigits(digits) {
		return "", false
	}
	return managementPrefix + digits, true
}

// Digits удаляет из строки всё, кроме ASCII-цифр.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// PhoneSuffix возвращает последние 4 цифры телефона.
// "090-1234-5678" и "09012345678" дают "5678".
func PhoneSuffix(phone string) string {
	d := Digits(phone)
	if len(d) <= 4 {
		return d
	}
	return d[len(d)-4:]
}

// FormatPhone форматирует телефон:
// до 3 цифр — как есть, до 7 — 090-1234, до 10 — 03-1234-5678 (городской),
// иначе 090-1234-5678 (мобильный, не более 11 цифр).
func FormatPhone(s string) string {
	d := Digits(s)
	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 7:
		return d[:3] + "-" + d[3:]
	case len(d) <= 10:
		return d[:2] + "-" + d[2:6] + "-" + d[6:]
	default:
		if len(d) > 11 {
			d = d[:11]
		}
		return d[:3] + "-" + d[3:7] + "-" + d[7:]
	}
}

// FormatPostalCode форматирует почтовый индекс как 123-4567 (первые 7 цифр).
func FormatPostalCode(s string) string {
	d := Digits(s)
	if len(d) > 7 {
		d = d[:7]
	}
	if len(d) <= 3 {
		return d
	}
	return d[:3] + "-" + d[3:]
}

func isASCIIDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
