// Package permission is the closed catalog of grantable store permissions and
// the named default bundles handed to new staff.
package permission

import (
	"github.com/georgemunganga/bikeservice-backend/internal/platform/apperror"
)

// Permission is a single grantable capability at a store.
type Permission string

const (
	ViewServices   Permission = "VIEW_SERVICES"
	CreateServices Permission = "CREATE_SERVICES"
	UpdateServices Permission = "UPDATE_SERVICES"
	DeleteServices Permission = "DELETE_SERVICES"

	ViewQuotations   Permission = "VIEW_QUOTATIONS"
	CreateQuotations Permission = "CREATE_QUOTATIONS"
	UpdateQuotations Permission = "UPDATE_QUOTATIONS"
	DeleteQuotations Permission = "DELETE_QUOTATIONS"

	ViewInvoices   Permission = "VIEW_INVOICES"
	CreateInvoices Permission = "CREATE_INVOICES"
	UpdateInvoices Permission = "UPDATE_INVOICES"
	DeleteInvoices Permission = "DELETE_INVOICES"

	ViewCustomers   Permission = "VIEW_CUSTOMERS"
	CreateCustomers Permission = "CREATE_CUSTOMERS"
	UpdateCustomers Permission = "UPDATE_CUSTOMERS"
	DeleteCustomers Permission = "DELETE_CUSTOMERS"

	ViewStaff   Permission = "VIEW_STAFF"
	CreateStaff Permission = "CREATE_STAFF"
	UpdateStaff Permission = "UPDATE_STAFF"
	DeleteStaff Permission = "DELETE_STAFF"

	ViewReports Permission = "VIEW_REPORTS"
	ManageStore Permission = "MANAGE_STORE"
)

// Bundle names.
const (
	BundleStaff       = "staff"
	BundleSeniorStaff = "senior_staff"
)

var all = []Permission{
	ViewServices, CreateServices, UpdateServices, DeleteServices,
	ViewQuotations, CreateQuotations, UpdateQuotations, DeleteQuotations,
	ViewInvoices, CreateInvoices, UpdateInvoices, DeleteInvoices,
	ViewCustomers, CreateCustomers, UpdateCustomers, DeleteCustomers,
	ViewStaff, CreateStaff, UpdateStaff, DeleteStaff,
	ViewReports, ManageStore,
}

var staff = []Permission{
	ViewServices, CreateServices, UpdateServices,
	ViewQuotations, CreateQuotations,
	ViewInvoices,
	ViewCustomers,
}

var seniorStaff = []Permission{
	ViewServices, CreateServices, UpdateServices, DeleteServices,
	ViewQuotations, CreateQuotations, UpdateQuotations,
	ViewInvoices, CreateInvoices, UpdateInvoices,
	ViewCustomers, CreateCustomers, UpdateCustomers,
	ViewStaff,
	ViewReports,
}

var known = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(all))
	for _, p := range all {
		m[p] = struct{}{}
	}
	return m
}()

// All returns every grantable permission in catalog order.
func All() []Permission { return clone(all) }

// DefaultStaff returns the bundle granted to regular staff.
func DefaultStaff() []Permission { return clone(staff) }

// DefaultSeniorStaff returns the bundle granted to senior staff.
func DefaultSeniorStaff() []Permission { return clone(seniorStaff) }

// Bundles returns the named default bundles.
func Bundles() map[string][]Permission {
	return map[string][]Permission{
		BundleStaff:       DefaultStaff(),
		BundleSeniorStaff: DefaultSeniorStaff(),
	}
}

// Bundle looks up a bundle by name.
func Bundle(name string) ([]Permission, bool) {
	switch name {
	case BundleStaff:
		return DefaultStaff(), true
	case BundleSeniorStaff:
		return DefaultSeniorStaff(), true
	}
	return nil, false
}

// IsValid reports whether p is in the catalog.
func IsValid(p Permission) bool {
	_, ok := known[p]
	return ok
}

// Validate rejects unknown or repeated permissions. An empty set is valid.
func Validate(perms []Permission) error {
	seen := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		if !IsValid(p) {
			return apperror.Field("permissions", "unknown permission "+string(p))
		}
		if _, dup := seen[p]; dup {
			return apperror.Field("permissions", "duplicate permission "+string(p))
		}
		seen[p] = struct{}{}
	}
	return nil
}

// Parse converts raw strings into catalog permissions, validating them.
func Parse(raw []string) ([]Permission, error) {
	perms := make([]Permission, len(raw))
	for i, r := range raw {
		perms[i] = Permission(r)
	}
	if err := Validate(perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// Strings converts permissions to their wire form.
func Strings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func clone(src []Permission) []Permission {
	out := make([]Permission, len(src))
	copy(out, src)
	return out
}
