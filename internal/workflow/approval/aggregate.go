package approval

import (
	"slices"

	"contracthub/internal/contract"
)

// Aggregate 由审批记录推导出的合同状态与当前处理人
type Aggregate struct {
	Status     contract.Status
	AssignedTo *string
}

// DeriveAggregate 根据一轮审批记录推导合同状态
//   - 任一驳回：REJECTED，退回合同创建人
//   - 任一要求修改：REVISION_REQUESTED，退回合同创建人
//   - 无待审批且至少一个通过：approved（APPROVED 或 SIGNING），交还合同创建人
//   - 其余：UNDER_REVIEW，交给创建顺序上第一个待审批人
func DeriveAggregate(records []ContractApproval, creatorID string, approved contract.Status) Aggregate {
	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, func(a, b ContractApproval) int {
		if a.Sequence != b.Sequence {
			return a.Sequence - b.Sequence
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	var (
		rejected, revision, anyApproved bool
		firstPending                    *string
	)
	for i := range ordered {
		switch ordered[i].Status {
		case StatusRejected:
			rejected = true
		case StatusRevisionRequested:
			revision = true
		case StatusApproved:
			anyApproved = true
		case StatusPending:
			if firstPending == nil {
				id := ordered[i].ApproverID
				firstPending = &id
			}
		}
	}

	creator := &creatorID
	switch {
	case rejected:
		return Aggregate{Status: contract.StatusRejected, AssignedTo: creator}
	case revision:
		return Aggregate{Status: contract.StatusRevisionRequested, AssignedTo: creator}
	case firstPending == nil && anyApproved:
		return Aggregate{Status: approved, AssignedTo: creator}
	}
	return Aggregate{Status: contract.StatusUnderReview, AssignedTo: firstPending}
}
