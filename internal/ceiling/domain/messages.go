package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
)

// Kind maps a band to its notification kind. NORMAL has none.
func (b Band) Kind() string {
	switch b {
	case BandAttention:
		return notificationdomain.KindCeilingAttention
	case BandWarning:
		return notificationdomain.KindCeilingWarning
	case BandCritical:
		return notificationdomain.KindCeilingCritical
	case BandExceeded:
		return notificationdomain.KindCeilingExceeded
	case BandExceededCritical:
		return notificationdomain.KindCeilingExceededCritical
	default:
		return ""
	}
}

func (b Band) Severity() notificationdomain.Severity {
	switch b {
	case BandAttention:
		return notificationdomain.SeverityLow
	case BandWarning:
		return notificationdomain.SeverityNormal
	case BandCritical:
		return notificationdomain.SeverityHigh
	case BandExceeded, BandExceededCritical:
		return notificationdomain.SeverityCritical
	default:
		return notificationdomain.SeverityLow
	}
}

// Message renders the pt-BR title and body of a ceiling alert.
func Message(b Band, legalName string, total, ceiling decimal.Decimal, ratio float64) (title, body string) {
	pct := notificationdomain.FormatPercent(ratio)
	totalBRL := notificationdomain.FormatBRL(total)
	ceilingBRL := notificationdomain.FormatBRL(ceiling)

	switch b {
	case BandAttention:
		return "Atenção com o faturamento",
			fmt.Sprintf("MEI %s: você atingiu %s do teto anual (%s de %s).", legalName, pct, totalBRL, ceilingBRL)
	case BandWarning:
		return "Alerta de faturamento",
			fmt.Sprintf("MEI %s: você atingiu %s do teto anual (%s de %s). Planeje as próximas emissões.", legalName, pct, totalBRL, ceilingBRL)
	case BandCritical:
		return "ATENÇÃO CRÍTICA - Quase no limite!",
			fmt.Sprintf("MEI %s: você atingiu %s do teto anual (%s de %s).", legalName, pct, totalBRL, ceilingBRL)
	case BandExceeded:
		return "TETO ANUAL ULTRAPASSADO!",
			fmt.Sprintf("MEI %s: faturamento de %s ultrapassou o teto de %s. O excesso será tributado no ano seguinte.", legalName, totalBRL, ceilingBRL)
	case BandExceededCritical:
		limit := notificationdomain.FormatBRL(ceiling.Mul(DisqualificationFactor).Round(2))
		return "DESENQUADRAMENTO IMINENTE!",
			fmt.Sprintf("MEI %s: faturamento de %s ultrapassou o limite de %s (120%% do teto). O desenquadramento retroage a 1º de janeiro.", legalName, totalBRL, limit)
	default:
		return "", ""
	}
}
