package service

import "github.com/medflow/hospital-erp/internal/inventory/repository"

// Requisition workflow operations
const (
	OpApprove  = "approve"
	OpReject   = "reject"
	OpRestock  = "restock"
	OpCheckout = "checkout"
	OpProcure  = "procure"
	OpResubmit = "resubmit"
)

// transitions maps each operation to the states it may start from and the
// state it leads to.
var transitions = map[string]struct {
	from []repository.RequisitionStatus
	to   repository.RequisitionStatus
}{
	OpApprove: {
		from: []repository.RequisitionStatus{repository.RequisitionPending},
		to:   repository.RequisitionApproved,
	},
	OpReject: {
		from: []repository.RequisitionStatus{repository.RequisitionPending},
		to:   repository.RequisitionRejected,
	},
	OpRestock: {
		from: []repository.RequisitionStatus{
			repository.RequisitionPending,
			repository.RequisitionApproved,
			repository.RequisitionRestocking,
			repository.RequisitionProcurement,
		},
		to: repository.RequisitionRestocking,
	},
	OpCheckout: {
		from: []repository.RequisitionStatus{repository.RequisitionApproved},
		to:   repository.RequisitionCompleted,
	},
	// A linked procurement request was approved.
	OpProcure: {
		from: []repository.RequisitionStatus{repository.RequisitionRestocking},
		to:   repository.RequisitionProcurement,
	},
	// Goods for a linked procurement request arrived. See NextStatus for
	// requisitions whose stock already moved.
	OpResubmit: {
		from: []repository.RequisitionStatus{repository.RequisitionRestocking, repository.RequisitionProcurement},
		to:   repository.RequisitionPending,
	},
}

// CanTransition reports whether op is allowed from status.
func CanTransition(op string, status repository.RequisitionStatus) bool {
	t, ok := transitions[op]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == status {
			return true
		}
	}
	return false
}

// TargetStatus returns the state op leads to.
func TargetStatus(op string) repository.RequisitionStatus {
	return transitions[op].to
}

// NextStatus is the state op moves req to. A requisition that was approved
// before it went to restocking already holds its stock in the department, so
// resubmitting it returns it to approved instead of offering it for a second
// approval.
func NextStatus(op string, req *repository.Requisition) repository.RequisitionStatus {
	if op == OpResubmit && req.ApprovedAt != nil {
		return repository.RequisitionApproved
	}
	return TargetStatus(op)
}

// IsTerminal reports whether no operation can leave status.
func IsTerminal(status repository.RequisitionStatus) bool {
	for op := range transitions {
		if CanTransition(op, status) {
			return false
		}
	}
	return true
}
