package whatsapp

import (
	"fmt"
	"strings"
	"time"
)

// AvailabilityMessage announces restocked inventory to a favorites subscriber.
func AvailabilityMessage(medicineName, siteName string, quantity int) string {
	return fmt.Sprintf(
		"Medifast: %s is available again at %s (%d units in stock). Schedule your pickup soon.",
		medicineName, siteName, quantity,
	)
}

// ReminderMessage combines every medicine of one batch into a single reminder.
func ReminderMessage(siteName string, scheduledAt time.Time, medicineNames []string) string {
	return fmt.Sprintf(
		"Medifast reminder: your pickup of %s at %s is scheduled for %s. It expires one hour after the scheduled time.",
		strings.Join(medicineNames, ", "),
		siteName,
		scheduledAt.Format("2006-01-02 15:04"),
	)
}

// RecoveryMessage carries a temporary password.
func RecoveryMessage(tempPassword string) string {
	return fmt.Sprintf(
		"Medifast: your temporary password is %s. Sign in and change it immediately.",
		tempPassword,
	)
}
