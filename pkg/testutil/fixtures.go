package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/permissions"
)

// ItemFixture represents test inventory item data
type ItemFixture struct {
	Name             string
	DepartmentID     string
	Category         string
	Unit             string
	MinStock         int
	RestockThreshold int
}

// BatchFixture represents a delivery of stock for an item
type BatchFixture struct {
	Quantity   int
	ExpiryDate *time.Time
	Supplier   string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Item creates a warehouse item fixture with defaults
func (f *FixtureFactory) Item(opts ...func(*ItemFixture)) ItemFixture {
	seq := f.nextSeq()

	item := ItemFixture{
		Name:             fmt.Sprintf("Test Item %d", seq),
		Category:         "Medical Supplies",
		Unit:             "piece",
		MinStock:         0,
		RestockThreshold: 0,
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithItemName sets the item name
func WithItemName(name string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.Name = name
	}
}

// AtDepartment places the item in a department instead of the warehouse
func AtDepartment(departmentID string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.DepartmentID = departmentID
	}
}

// WithLevels sets the minimum stock and restock threshold
func WithLevels(minStock, threshold int) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.MinStock = minStock
		i.RestockThreshold = threshold
	}
}

// Batch creates a batch fixture. A zero expiry means undated stock.
func (f *FixtureFactory) Batch(quantity int, expiresIn time.Duration) BatchFixture {
	b := BatchFixture{
		Quantity: quantity,
		Supplier: fmt.Sprintf("Supplier %d", f.nextSeq()),
	}
	if expiresIn != 0 {
		exp := time.Now().UTC().Add(expiresIn).Truncate(24 * time.Hour)
		b.ExpiryDate = &exp
	}
	return b
}

// Date returns a UTC calendar date
func Date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

// Admin returns a global administrator identity
func (f *FixtureFactory) Admin() *identity.Identity {
	return &identity.Identity{
		UserID:       uuid.New().String(),
		Role:         permissions.RoleAdmin,
		IsGlobalRole: true,
	}
}

// Staff returns a department staff identity
func (f *FixtureFactory) Staff(departmentID string) *identity.Identity {
	return &identity.Identity{
		UserID:       uuid.New().String(),
		DepartmentID: departmentID,
		Role:         permissions.RoleDepartmentStaff,
	}
}

// Manager returns an identity for the given role without a department
func (f *FixtureFactory) Manager(role string) *identity.Identity {
	return &identity.Identity{
		UserID:       uuid.New().String(),
		Role:         role,
		IsGlobalRole: true,
	}
}
