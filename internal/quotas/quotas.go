// Package quotas parses quota amounts and reconciles quota definitions,
// including their user and group membership, with a Galaxy server.
package quotas

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/juju/loggo"

	"github.com/BV-BRC/galaxy-admin/internal/units"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

var logger = loggo.GetLogger("galaxy-admin.quotas")

// Unlimited is the amount of a quota without a size limit.
const Unlimited = "unlimited"

// Spec is a quota amount with the operation applied to it: "=" sets the
// quota, "+" and "-" adjust the quota from other sources.
type Spec struct {
	Operation string
	Amount    string
	Bytes     int64
}

func (s Spec) String() string {
	return s.Operation + s.Amount
}

// ParseSpec parses "[=|+|-]AMOUNT" where AMOUNT is "unlimited" or a size
// such as "10G" or "1.5 TB". The operation defaults to "=".
func ParseSpec(s string) (Spec, error) {
	spec := Spec{Operation: "="}
	amount := strings.TrimSpace(s)
	if amount != "" && strings.ContainsRune("=+-", rune(amount[0])) {
		spec.Operation = amount[:1]
		amount = strings.TrimSpace(amount[1:])
	}
	if amount == "" {
		return Spec{}, fmt.Errorf("quota '%s' has no amount", s)
	}
	if strings.EqualFold(amount, Unlimited) {
		if spec.Operation != "=" {
			return Spec{}, fmt.Errorf("quota '%s': unlimited can only be set with '='", s)
		}
		spec.Amount = Unlimited
		spec.Bytes = -1
		return spec, nil
	}
	n, err := units.ParseSize(amount)
	if err != nil {
		return Spec{}, fmt.Errorf("quota '%s': %w", s, err)
	}
	spec.Amount = amount
	spec.Bytes = n
	return spec, nil
}

// Default classes a quota can be the default for. DefaultNone clears it.
const (
	DefaultRegistered   = "registered"
	DefaultUnregistered = "unregistered"
	DefaultNone         = "no"
)

// CheckDefault validates a --default_for value. Empty means unchanged.
func CheckDefault(d string) error {
	switch d {
	case "", DefaultRegistered, DefaultUnregistered, DefaultNone:
		return nil
	}
	return fmt.Errorf("invalid default '%s' (expected %s, %s or %s)", d, DefaultRegistered, DefaultUnregistered, DefaultNone)
}

// API is the part of the Galaxy API used to manage quotas.
type API interface {
	ListUsers(ctx context.Context, deleted bool) ([]galaxy.User, error)
	ListGroups(ctx context.Context) ([]galaxy.Group, error)
	ListQuotas(ctx context.Context, deleted bool) ([]galaxy.QuotaSummary, error)
	ShowQuota(ctx context.Context, id string, deleted bool) (*galaxy.Quota, error)
	FindQuota(ctx context.Context, name string) (*galaxy.Quota, error)
	CreateQuota(ctx context.Context, req galaxy.QuotaRequest) error
	UpdateQuota(ctx context.Context, id string, req galaxy.QuotaRequest) error
	DeleteQuota(ctx context.Context, id string) error
	UndeleteQuota(ctx context.Context, id string) error
}

// Status selects quotas by deletion state.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
	StatusAll     = "all"
)

// List returns the quotas whose names match pattern, sorted by name.
func List(ctx context.Context, api API, pattern, status string) ([]*galaxy.Quota, error) {
	var which []bool
	switch status {
	case "", StatusActive:
		which = []bool{false}
	case StatusDeleted:
		which = []bool{true}
	case StatusAll:
		which = []bool{false, true}
	default:
		return nil, fmt.Errorf("invalid status '%s'", status)
	}

	var out []*galaxy.Quota
	for _, deleted := range which {
		summaries, err := api.ListQuotas(ctx, deleted)
		if err != nil {
			return nil, fmt.Errorf("failed to list quotas: %w", err)
		}
		for _, s := range summaries {
			if pattern != "" {
				if ok, _ := path.Match(pattern, s.Name); !ok {
					continue
				}
			}
			q, err := api.ShowQuota(ctx, s.ID, deleted)
			if err != nil {
				return nil, fmt.Errorf("failed to get quota %s: %w", s.Name, err)
			}
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return strings.ToLower(out[a].Name) < strings.ToLower(out[b].Name) })
	return out, nil
}

func userIDs(ctx context.Context, api API, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	users, err := api.ListUsers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	byEmail := map[string]string{}
	for _, u := range users {
		byEmail[strings.ToLower(u.Email)] = u.ID
	}
	ids := make([]string, 0, len(emails))
	for _, e := range emails {
		id, ok := byEmail[strings.ToLower(e)]
		if !ok {
			return nil, &galaxy.NotFoundError{Kind: "user", Name: e}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func groupIDs(ctx context.Context, api API, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	groups, err := api.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	byName := map[string]string{}
	for _, g := range groups {
		byName[g.Name] = g.ID
	}
	ids := make([]string, 0, len(names))
	for _, n := range names {
		id, ok := byName[n]
		if !ok {
			return nil, &galaxy.NotFoundError{Kind: "group", Name: n}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// New describes a quota to create.
type New struct {
	Name        string
	Description string
	Amount      string
	DefaultFor  string
	Users       []string
	Groups      []string
}

// Create adds a quota. It fails if a quota (active or deleted) already
// has the name, or a user or group is unknown.
func Create(ctx context.Context, api API, n New) error {
	if n.Name == "" || n.Description == "" {
		return errors.New("quota needs a name and a description")
	}
	spec, err := ParseSpec(n.Amount)
	if err != nil {
		return err
	}
	if err := CheckDefault(n.DefaultFor); err != nil {
		return err
	}

	switch _, err := api.FindQuota(ctx, n.Name); {
	case err == nil:
		return fmt.Errorf("quota '%s' already exists", n.Name)
	case !isNotFound(err):
		return err
	}

	req := galaxy.QuotaRequest{
		Name:        n.Name,
		Description: n.Description,
		Amount:      spec.Amount,
		Operation:   spec.Operation,
		Default:     n.DefaultFor,
	}
	if req.Default == "" {
		req.Default = DefaultNone
	}
	if req.InUsers, err = userIDs(ctx, api, n.Users); err != nil {
		return err
	}
	if req.InGroups, err = groupIDs(ctx, api, n.Groups); err != nil {
		return err
	}
	logger.Debugf("creating quota %s: %s", n.Name, spec)
	return api.CreateQuota(ctx, req)
}

// Changes describes a quota modification. Empty fields are left alone.
type Changes struct {
	Name         string
	Description  string
	Amount       string
	DefaultFor   string
	AddUsers     []string
	RemoveUsers  []string
	AddGroups    []string
	RemoveGroups []string
	Undelete     bool
}

// Modify applies ch to the named quota. A deleted quota must be undeleted
// in the same call before it can be changed.
func Modify(ctx context.Context, api API, name string, ch Changes) error {
	q, err := api.FindQuota(ctx, name)
	if err != nil {
		return err
	}
	if err := CheckDefault(ch.DefaultFor); err != nil {
		return err
	}

	if q.Deleted {
		if !ch.Undelete {
			return fmt.Errorf("quota '%s' is deleted", name)
		}
		if err := api.UndeleteQuota(ctx, q.ID); err != nil {
			return fmt.Errorf("failed to undelete quota '%s': %w", name, err)
		}
		logger.Infof("undeleted quota %s", name)
	} else if ch.Undelete {
		logger.Warningf("quota %s is not deleted", name)
	}

	req := galaxy.QuotaRequest{Name: ch.Name, Description: ch.Description, Default: ch.DefaultFor}
	changed := req.Name != "" || req.Description != "" || req.Default != ""
	if ch.Amount != "" {
		spec, err := ParseSpec(ch.Amount)
		if err != nil {
			return err
		}
		req.Amount, req.Operation = spec.Amount, spec.Operation
		changed = true
	}

	if len(ch.AddUsers) > 0 || len(ch.RemoveUsers) > 0 {
		emails := apply(q.UserEmails(), ch.AddUsers, ch.RemoveUsers, strings.ToLower)
		ids, err := userIDs(ctx, api, emails)
		if err != nil {
			return err
		}
		req.InUsers = append([]string{}, ids...)
		changed = true
	}
	if len(ch.AddGroups) > 0 || len(ch.RemoveGroups) > 0 {
		names := apply(q.GroupNames(), ch.AddGroups, ch.RemoveGroups, func(s string) string { return s })
		ids, err := groupIDs(ctx, api, names)
		if err != nil {
			return err
		}
		req.InGroups = append([]string{}, ids...)
		changed = true
	}

	if !changed {
		return nil
	}
	if err := api.UpdateQuota(ctx, q.ID, req); err != nil {
		return fmt.Errorf("failed to update quota '%s': %w", name, err)
	}
	return nil
}

// apply adds and removes members, keeping the original order. key
// normalises members for comparison.
func apply(current, add, remove []string, key func(string) string) []string {
	drop := map[string]bool{}
	for _, r := range remove {
		drop[key(r)] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range append(append([]string{}, current...), add...) {
		k := key(m)
		if drop[k] || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	for _, r := range remove {
		if !contains(current, r, key) {
			logger.Warningf("%s is not associated with the quota", r)
		}
	}
	return out
}

func contains(list []string, s string, key func(string) string) bool {
	for _, v := range list {
		if key(v) == key(s) {
			return true
		}
	}
	return false
}

// Delete marks the named quota deleted.
func Delete(ctx context.Context, api API, name string) error {
	q, err := api.FindQuota(ctx, name)
	if err != nil {
		return err
	}
	if q.Deleted {
		return fmt.Errorf("quota '%s' is already deleted", name)
	}
	return api.DeleteQuota(ctx, q.ID)
}

func isNotFound(err error) bool {
	var nf *galaxy.NotFoundError
	return errors.As(err, &nf)
}
