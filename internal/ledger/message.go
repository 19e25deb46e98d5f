package ledger

import (
	"fmt"
	"strconv"
)

// FormatNotification renders the SMS text sent after a committed transaction.
func FormatNotification(n Notification) string {
	return fmt.Sprintf(
		"Dear %s, thank you for shopping at %s. Your points balance is %s. Visit again within %d days to keep your tier benefits.",
		n.CustomerName,
		n.BusinessName,
		strconv.FormatFloat(n.Points, 'f', -1, 64),
		n.DeadlineDays,
	)
}
