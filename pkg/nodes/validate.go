package nodes

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zapdesk/flowengine/pkg/models"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitsOnly   = regexp.MustCompile(`\D`)
)

var dateLayouts = []string{"02/01/2006", "2006-01-02"}

// ValidateReply checks a reply against an input node's validation kind.
// The text kind always passes.
func ValidateReply(kind models.ValidationKind, reply string) bool {
	reply = strings.TrimSpace(reply)

	switch kind {
	case models.ValidationText, "":
		return true
	case models.ValidationEmail:
		return emailPattern.MatchString(reply)
	case models.ValidationPhone:
		digits := digitsOnly.ReplaceAllString(reply, "")

		return len(digits) >= 8 && len(digits) <= 15
	case models.ValidationNumber:
		_, err := strconv.ParseFloat(strings.ReplaceAll(reply, ",", "."), 64)

		return err == nil
	case models.ValidationCPF:
		return validCPF(reply)
	case models.ValidationDate:
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, reply); err == nil {
				return true
			}
		}

		return false
	default:
		return true
	}
}

// validCPF applies the CPF check-digit algorithm. Formatting characters are
// stripped first; repeated-digit sequences are rejected.
func validCPF(value string) bool {
	cpf := digitsOnly.ReplaceAllString(value, "")
	if len(cpf) != 11 {
		return false
	}

	allEqual := true

	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			allEqual = false

			break
		}
	}

	if allEqual {
		return false
	}

	return cpfDigit(cpf, 9) == int(cpf[9]-'0') && cpfDigit(cpf, 10) == int(cpf[10]-'0')
}

// cpfDigit computes the check digit over the first n digits of cpf.
func cpfDigit(cpf string, n int) int {
	sum := 0

	for i := 0; i < n; i++ {
		sum += int(cpf[i]-'0') * (n + 1 - i)
	}

	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}

	return rest
}
