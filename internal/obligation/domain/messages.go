package domain

import (
	"fmt"
	"time"

	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
)

// OverdueMessage renders the pt-BR alert for a guide that passed its due date.
func OverdueMessage(legalName string, g DASGuide, loc *time.Location) (title, body string) {
	return "DAS em atraso",
		fmt.Sprintf("MEI %s: a guia DAS de %s (%s) venceu em %s. Pague o quanto antes para reduzir multa e juros.",
			legalName,
			notificationdomain.MonthYear(g.Year, time.Month(g.Month)),
			notificationdomain.FormatBRL(g.Amount),
			notificationdomain.FormatDate(g.DueDate, loc),
		)
}

// DueSoonMessage renders the pt-BR reminder for a guide close to its due date.
func DueSoonMessage(legalName string, g DASGuide, loc *time.Location) (title, body string) {
	return "DAS vence em breve",
		fmt.Sprintf("MEI %s: a guia DAS de %s (%s) vence em %s.",
			legalName,
			notificationdomain.MonthYear(g.Year, time.Month(g.Month)),
			notificationdomain.FormatBRL(g.Amount),
			notificationdomain.FormatDate(g.DueDate, loc),
		)
}

// DeclarationMessage renders the countdown reminder for the annual
// declaration of calendarYear.
func DeclarationMessage(legalName string, calendarYear, daysLeft int, deadline time.Time, loc *time.Location) (title, body string) {
	title = "Declaração anual (DASN-SIMEI)"
	due := notificationdomain.FormatDate(deadline, loc)
	switch daysLeft {
	case 0:
		return title, fmt.Sprintf("MEI %s: o prazo da declaração anual de %d termina hoje (%s).", legalName, calendarYear, due)
	case 1:
		return title, fmt.Sprintf("MEI %s: falta 1 dia para entregar a declaração anual de %d. Prazo: %s.", legalName, calendarYear, due)
	default:
		return title, fmt.Sprintf("MEI %s: faltam %d dias para entregar a declaração anual de %d. Prazo: %s.", legalName, daysLeft, calendarYear, due)
	}
}

// DeclarationSeverity is high inside the last week.
func DeclarationSeverity(daysLeft int) notificationdomain.Severity {
	if daysLeft <= 7 {
		return notificationdomain.SeverityHigh
	}
	return notificationdomain.SeverityNormal
}

func DueSoonMarker(guideID string) string {
	return "guide_due_soon:" + guideID
}

func DeclarationMarker(calendarYear, milestone int) string {
	return fmt.Sprintf("declaration:%d:%d", calendarYear, milestone)
}
