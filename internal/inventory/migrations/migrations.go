// Package migrations holds the inventory service schema. The statements are
// idempotent so they can run at every start-up and in every test schema.
package migrations

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Statements returns the schema in application order.
func Statements() []string {
	return []string{
		`CREATE OR REPLACE FUNCTION update_updated_at()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = NOW();
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,

		// Items. The central warehouse is the empty department.
		`CREATE TABLE IF NOT EXISTS inventory_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			department_id VARCHAR(100) NOT NULL DEFAULT '',
			category VARCHAR(100),
			unit VARCHAR(50) NOT NULL DEFAULT 'unit',
			min_stock INTEGER NOT NULL DEFAULT 0,
			restock_threshold INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT inventory_items_name_department_key UNIQUE (name, department_id),
			CONSTRAINT inventory_items_levels_non_negative CHECK (min_stock >= 0 AND restock_threshold >= 0)
		)`,

		`CREATE TABLE IF NOT EXISTS inventory_batches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			item_id UUID NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
			quantity INTEGER NOT NULL,
			expiry_date DATE,
			supplier VARCHAR(255),
			seq BIGSERIAL NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT inventory_batches_quantity_non_negative CHECK (quantity >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_batches_item_fefo
			ON inventory_batches (item_id, expiry_date ASC NULLS LAST, seq ASC)`,

		`CREATE TABLE IF NOT EXISTS inventory_requisitions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			requester_id UUID NOT NULL,
			department_id VARCHAR(100) NOT NULL,
			item_name VARCHAR(255) NOT NULL,
			quantity INTEGER NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			approved_by UUID,
			approved_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT inventory_requisitions_quantity_positive CHECK (quantity > 0),
			CONSTRAINT inventory_requisitions_department_required CHECK (department_id <> ''),
			CONSTRAINT inventory_requisitions_status_valid CHECK (
				status IN ('pending', 'approved', 'rejected', 'restocking', 'procurement', 'completed')
			)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_requisitions_department
			ON inventory_requisitions (department_id, status)`,

		`CREATE TABLE IF NOT EXISTS procurement_requests (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title VARCHAR(255) NOT NULL,
			item_name VARCHAR(255) NOT NULL,
			quantity INTEGER NOT NULL,
			priority VARCHAR(10) NOT NULL DEFAULT 'normal',
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			deadline TIMESTAMPTZ NOT NULL,
			requested_by UUID NOT NULL,
			requisition_id UUID REFERENCES inventory_requisitions(id) ON DELETE SET NULL,
			approval_token UUID NOT NULL DEFAULT gen_random_uuid(),
			decided_by VARCHAR(255),
			decided_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT procurement_requests_quantity_positive CHECK (quantity > 0),
			CONSTRAINT procurement_requests_priority_valid CHECK (priority IN ('low', 'normal', 'high', 'urgent')),
			CONSTRAINT procurement_requests_status_valid CHECK (
				status IN ('pending', 'approved', 'rejected', 'completed')
			),
			CONSTRAINT procurement_requests_approval_token_key UNIQUE (approval_token)
		)`,
		// At most one pending request per title.
		`CREATE UNIQUE INDEX IF NOT EXISTS procurement_pending_title_idx
			ON procurement_requests (title) WHERE status = 'pending'`,

		`CREATE TABLE IF NOT EXISTS inventory_transactions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			type VARCHAR(20) NOT NULL,
			item_id UUID REFERENCES inventory_items(id) ON DELETE SET NULL,
			item_name VARCHAR(255) NOT NULL,
			department_id VARCHAR(100) NOT NULL DEFAULT '',
			counterpart_department_id VARCHAR(100),
			quantity INTEGER NOT NULL,
			category VARCHAR(100),
			performed_by UUID NOT NULL,
			requisition_id UUID REFERENCES inventory_requisitions(id) ON DELETE SET NULL,
			procurement_id UUID REFERENCES procurement_requests(id) ON DELETE SET NULL,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ,
			CONSTRAINT inventory_transactions_quantity_positive CHECK (quantity > 0),
			CONSTRAINT inventory_transactions_type_valid CHECK (
				type IN ('transfer', 'usage', 'checkout', 'restocking')
			)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_transactions_item
			ON inventory_transactions (item_id, created_at DESC)`,

		`DROP TRIGGER IF EXISTS inventory_items_updated_at ON inventory_items`,
		`CREATE TRIGGER inventory_items_updated_at BEFORE UPDATE ON inventory_items
			FOR EACH ROW EXECUTE FUNCTION update_updated_at()`,
		`DROP TRIGGER IF EXISTS inventory_batches_updated_at ON inventory_batches`,
		`CREATE TRIGGER inventory_batches_updated_at BEFORE UPDATE ON inventory_batches
			FOR EACH ROW EXECUTE FUNCTION update_updated_at()`,
		`DROP TRIGGER IF EXISTS inventory_requisitions_updated_at ON inventory_requisitions`,
		`CREATE TRIGGER inventory_requisitions_updated_at BEFORE UPDATE ON inventory_requisitions
			FOR EACH ROW EXECUTE FUNCTION update_updated_at()`,
		`DROP TRIGGER IF EXISTS procurement_requests_updated_at ON procurement_requests`,
		`CREATE TRIGGER procurement_requests_updated_at BEFORE UPDATE ON procurement_requests
			FOR EACH ROW EXECUTE FUNCTION update_updated_at()`,
	}
}

// Apply runs every statement in order.
func Apply(ctx context.Context, db sqlx.ExecerContext) error {
	for i, stmt := range Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
