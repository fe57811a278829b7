// Package users holds the rules for creating Galaxy accounts: deriving
// public names from email addresses, expanding batch templates and reading
// account lists from files.
package users

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/juju/loggo"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

var logger = loggo.GetLogger("galaxy-admin.users")

// MinPasswordLength is the shortest password Galaxy accepts.
const MinPasswordLength = 6

var usernameRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// Account is a user to be created.
type Account struct {
	Email    string
	Password string
	Username string
}

// Username derives a public name from the local part of an email address:
// lower case, with '.' and '_' replaced by '-'.
func Username(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}
	return strings.NewReplacer(".", "-", "_", "-").Replace(strings.ToLower(local))
}

// CheckEmail rejects addresses without exactly one '@' between non-empty parts.
func CheckEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return fmt.Errorf("'%s' is not a valid email address", email)
	}
	return nil
}

// CheckUsername rejects public names Galaxy would refuse.
func CheckUsername(name string) error {
	if !usernameRe.MatchString(name) {
		return fmt.Errorf("public name '%s' must contain only lower-case letters, numbers and '-'", name)
	}
	return nil
}

// CheckPassword rejects passwords shorter than MinPasswordLength.
func CheckPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Validate fills in a missing username and checks every field.
func (a *Account) Validate() error {
	if err := CheckEmail(a.Email); err != nil {
		return err
	}
	if a.Username == "" {
		a.Username = Username(a.Email)
	}
	if err := CheckUsername(a.Username); err != nil {
		return err
	}
	return CheckPassword(a.Password)
}

// ExpandTemplate turns a template such as "user#@example.org" into one
// address per index in [start, end]. The template must have exactly one '#'
// and it must be in the local part.
func ExpandTemplate(tmpl string, start, end int) ([]string, error) {
	local, domain, ok := strings.Cut(tmpl, "@")
	switch {
	case !ok || local == "" || domain == "":
		return nil, fmt.Errorf("template '%s' is not an email address", tmpl)
	case strings.Count(local, "#") != 1:
		return nil, fmt.Errorf("template '%s' must have exactly one '#' before the '@'", tmpl)
	case strings.Contains(domain, "#"):
		return nil, fmt.Errorf("template '%s' must not have '#' after the '@'", tmpl)
	case start < 0 || end < start:
		return nil, fmt.Errorf("bad range %d to %d", start, end)
	}

	emails := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		emails = append(emails, strings.Replace(local, "#", strconv.Itoa(i), 1)+"@"+domain)
	}
	return emails, nil
}

// ReadAccounts parses tab-separated lines of email, password and optional
// public name. Blank lines and lines starting with '#' are skipped. Every
// account is validated, and an email appearing twice is an error.
func ReadAccounts(r io.Reader) ([]Account, error) {
	var accounts []Account
	seen := map[string]int{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("line %d: expected email, password and optional public name", lineNo)
		}
		a := Account{Email: strings.TrimSpace(fields[0]), Password: strings.TrimSpace(fields[1])}
		if len(fields) == 3 {
			a.Username = strings.TrimSpace(fields[2])
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		key := strings.ToLower(a.Email)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("line %d: %s already given on line %d", lineNo, a.Email, prev)
		}
		seen[key] = lineNo
		accounts = append(accounts, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Creator is the part of the Galaxy API used to create accounts.
type Creator interface {
	ListUsers(ctx context.Context, deleted bool) ([]galaxy.User, error)
	CreateUser(ctx context.Context, username, email, password string) (*galaxy.User, error)
}

// Result is the outcome for one account.
type Result struct {
	Account Account
	User    *galaxy.User
	Err     error
}

// PartialBatchFailure is returned when some accounts could not be created.
type PartialBatchFailure struct {
	Failed []Result
	Total  int
}

func (e *PartialBatchFailure) Error() string {
	emails := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		emails = append(emails, r.Account.Email)
	}
	return fmt.Sprintf("failed to create %d of %d users: %s", len(e.Failed), e.Total, strings.Join(emails, ", "))
}

// CreateAll creates each account in turn. Accounts whose email already
// exists fail without a create call, and a failure does not stop the rest.
// With check set nothing is created; the existence checks still run.
func CreateAll(ctx context.Context, c Creator, accounts []Account, check bool) ([]Result, error) {
	existing, err := c.ListUsers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	taken := map[string]bool{}
	for _, u := range existing {
		taken[strings.ToLower(u.Email)] = true
	}

	results := make([]Result, 0, len(accounts))
	var failed []Result
	for _, a := range accounts {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		r := Result{Account: a}
		switch {
		case taken[strings.ToLower(a.Email)]:
			r.Err = fmt.Errorf("user with email %s already exists", a.Email)
		case check:
			logger.Debugf("%s: ok to create", a.Email)
		default:
			r.User, r.Err = c.CreateUser(ctx, a.Username, a.Email, a.Password)
			if r.Err != nil {
				r.Err = fmt.Errorf("failed to create %s: %w", a.Email, r.Err)
			}
		}
		if r.Err != nil {
			failed = append(failed, r)
		}
		results = append(results, r)
	}
	if len(failed) > 0 {
		return results, &PartialBatchFailure{Failed: failed, Total: len(accounts)}
	}
	return results, nil
}

// MessageData is available to welcome message templates.
type MessageData struct {
	Email    string
	Username string
	Password string
	URL      string
}

// WriteMessage renders a text/template welcome message.
func WriteMessage(w io.Writer, tmpl string, data MessageData) error {
	t, err := template.New("message").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("bad message template: %w", err)
	}
	return t.Execute(w, data)
}
