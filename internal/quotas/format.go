package quotas

import (
	"fmt"
	"io"
	"strings"

	"github.com/BV-BRC/galaxy-admin/internal/report"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// Amount renders the operation and size of a quota, e.g. "=10.0 GB".
func Amount(q *galaxy.Quota) string {
	amount := q.DisplayAmount
	if amount == "" {
		amount = Unlimited
	}
	op := q.Operation
	if op == "" {
		op = "="
	}
	return op + amount
}

func defaultFor(q *galaxy.Quota) string {
	if d := q.DefaultFor(); d != "" {
		return "default for " + d
	}
	return ""
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// WriteShort writes one line per quota.
func WriteShort(w io.Writer, quotas []*galaxy.Quota) error {
	t := report.NewTable()
	for _, q := range quotas {
		deleted := ""
		if q.Deleted {
			deleted = "[deleted]"
		}
		t.AddRow(q.Name, Amount(q), defaultFor(q), plural(len(q.Users), "user"), plural(len(q.Groups), "group"), deleted)
	}
	return t.Write(w)
}

// WriteLong writes a block of details per quota.
func WriteLong(w io.Writer, quotas []*galaxy.Quota) error {
	for i, q := range quotas {
		if i > 0 {
			fmt.Fprintln(w)
		}
		t := report.NewTable()
		name := q.Name
		if q.Deleted {
			name += " [deleted]"
		}
		d := q.DefaultFor()
		if d == "" {
			d = "none"
		}
		t.AddRow("Quota name:", name)
		t.AddRow("Description:", q.Description)
		t.AddRow("Size:", Amount(q))
		t.AddRow("Default:", d)
		t.AddRow("Users:", strings.Join(q.UserEmails(), ", "))
		t.AddRow("Groups:", strings.Join(q.GroupNames(), ", "))
		if err := t.Write(w); err != nil {
			return err
		}
	}
	return nil
}
