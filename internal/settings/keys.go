package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Persisted configuration keys.
const (
	KeyNotificationLeadDays = "dias_antes_notificacion"
	KeyFinePerDay           = "monto_multa_por_dia"
	KeyMaxSimultaneousLoans = "max_prestamos_simultaneos"
	KeyMaxLoanDays          = "dias_maximo_prestamo"
	KeyFinesEnabled         = "habilitar_multas"
	KeyReservationsEnabled  = "habilitar_reservas"
)

// Kind is the value type a key accepts.
type Kind string

const (
	KindInt     Kind = "int"
	KindDecimal Kind = "decimal"
	KindBool    Kind = "bool"
)

// Definition describes one configuration key.
type Definition struct {
	Key         string
	Kind        Kind
	Default     string
	Description string
	// Min is the smallest accepted numeric value.
	Min int64
}

var definitions = []Definition{
	{Key: KeyNotificationLeadDays, Kind: KindInt, Default: "1", Description: "days before due date to send a reminder", Min: 0},
	{Key: KeyFinePerDay, Kind: KindDecimal, Default: "5000", Description: "fine amount per late day", Min: 0},
	{Key: KeyMaxSimultaneousLoans, Kind: KindInt, Default: "3", Description: "default simultaneous loan limit", Min: 1},
	{Key: KeyMaxLoanDays, Kind: KindInt, Default: "7", Description: "maximum total loan duration in days", Min: 1},
	{Key: KeyFinesEnabled, Kind: KindBool, Default: "true", Description: "enable automatic fines"},
	{Key: KeyReservationsEnabled, Kind: KindBool, Default: "true", Description: "enable reservations"},
}

// Definitions returns every known key in display order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

func lookup(key string) (Definition, bool) {
	for _, def := range definitions {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}

// normalize checks raw against the key's kind and returns its canonical text.
func (d Definition) normalize(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	switch d.Kind {
	case KindInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return "", fmt.Errorf("%s must be an integer", d.Key)
		}
		if n < d.Min {
			return "", fmt.Errorf("%s must be at least %d", d.Key, d.Min)
		}
		return strconv.FormatInt(n, 10), nil
	case KindDecimal:
		n, err := decimal.NewFromString(value)
		if err != nil {
			return "", fmt.Errorf("%s must be a decimal number", d.Key)
		}
		if n.LessThan(decimal.NewFromInt(d.Min)) {
			return "", fmt.Errorf("%s must be at least %d", d.Key, d.Min)
		}
		return n.String(), nil
	case KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%s must be true or false", d.Key)
		}
		return strconv.FormatBool(b), nil
	default:
		return "", fmt.Errorf("unsupported kind %q", d.Kind)
	}
}
