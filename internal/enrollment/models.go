package enrollment

import (
	"time"

	"faceguard/internal/embedding"
)

// Record is the current enrollment for an identity. An identity holds exactly
// one live embedding; re-enrollment replaces it (last-write-wins) and keeps
// the previously assigned role.
type Record struct {
	Identity  string
	Embedding embedding.Vector
	Role      string
	CreatedAt time.Time
}
