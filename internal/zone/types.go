package zone

import "time"

// Zone represents a named grouping of devices used for bulk command
// targeting: a floor's lighting, an irrigation circuit, an HVAC wing.
//
// MemberIDs is the ordered set of member device IDs. Order is preserved
// from commissioning and carried through target resolution so bulk
// operations touch devices in a predictable sequence.
type Zone struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	MemberIDs []string  `json:"member_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the Zone.
func (z *Zone) DeepCopy() *Zone {
	if z == nil {
		return nil
	}
	cpy := *z
	if z.MemberIDs != nil {
		cpy.MemberIDs = make([]string, len(z.MemberIDs))
		copy(cpy.MemberIDs, z.MemberIDs)
	}
	return &cpy
}
