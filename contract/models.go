package contract

import "time"

// Status is derived from which signatures are present and nothing else.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPartiallySigned Status = "partially_signed"
	StatusFullySigned     Status = "fully_signed"
)

// Role identifies which of the two fixed parties is acting. The role decides
// which signature column a write lands in; the mapping is resolved in code,
// never by splicing caller input into SQL.
type Role string

const (
	RoleBrand   Role = "brand"
	RoleCreator Role = "creator"
)

// Valid reports whether the role is one of the two contract parties.
func (r Role) Valid() bool {
	return r == RoleBrand || r == RoleCreator
}

// Contract mirrors the contracts table.
type Contract struct {
	ID               string
	ChatroomID       string
	BrandID          string
	CreatorID        string
	Product          string
	Rate             float64
	Timeline         string
	Status           Status
	BrandSignature   *string
	CreatorSignature *string
	BrandSignedAt    *time.Time
	CreatorSignedAt  *time.Time
	IntegrityHash    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateParams carries caller input for contract creation. Rate arrives as a
// string because the boundary accepts numeric strings; the service parses and
// validates it.
type CreateParams struct {
	ChatroomID string
	BrandID    string
	CreatorID  string
	Product    string
	Rate       string
	Timeline   string
	ActorID    string
}

// SignRequest carries caller input for a signing operation. IdempotencyKey
// is optional; when a key is replayed the stored contract is returned without
// re-applying the signature.
type SignRequest struct {
	ContractID     string
	Role           Role
	Signature      string
	ActorID        string
	IdempotencyKey string
}

const (
	// EventCreated is appended when a contract row is inserted.
	EventCreated = "CONTRACT_CREATED"
	// EventSigned is appended once per successful signature write.
	EventSigned = "CONTRACT_SIGNED"

	// OutboxTopicCreated is published for every new contract.
	OutboxTopicCreated = "contract.created"
	// OutboxTopicFullySigned is published when the second signature lands.
	OutboxTopicFullySigned = "contract.fully_signed"
)
