package domain

import "strings"

// PhotoSlot identifies one of the fixed required photo categories for a
// vehicle quality-check submission. The set is closed: exactly seven slots,
// four exterior and three interior.
type PhotoSlot string

const (
	SlotExteriorFront     PhotoSlot = "exterior_front"
	SlotExteriorBack      PhotoSlot = "exterior_back"
	SlotExteriorLeft      PhotoSlot = "exterior_left"
	SlotExteriorRight     PhotoSlot = "exterior_right"
	SlotInteriorDashboard PhotoSlot = "interior_dashboard"
	SlotInteriorSeats     PhotoSlot = "interior_seats"
	SlotInteriorFloor     PhotoSlot = "interior_floor"
)

// RequiredSlotCount is the number of photos a complete submission carries.
const RequiredSlotCount = 7

// requiredSlots is the canonical submission order.
var requiredSlots = []PhotoSlot{
	SlotExteriorFront,
	SlotExteriorBack,
	SlotExteriorLeft,
	SlotExteriorRight,
	SlotInteriorDashboard,
	SlotInteriorSeats,
	SlotInteriorFloor,
}

var slotLabels = map[PhotoSlot]string{
	SlotExteriorFront:     "Front View",
	SlotExteriorBack:      "Back View",
	SlotExteriorLeft:      "Left Side",
	SlotExteriorRight:     "Right Side",
	SlotInteriorDashboard: "Dashboard",
	SlotInteriorSeats:     "Seats",
	SlotInteriorFloor:     "Floor Mats",
}

// RequiredSlots returns the seven required slots in canonical order.
// Callers must not mutate the returned slice.
func RequiredSlots() []PhotoSlot {
	return requiredSlots
}

// Valid reports whether s is one of the seven required slots.
func (s PhotoSlot) Valid() bool {
	_, ok := slotLabels[s]
	return ok
}

// Label returns the short display label for the slot ("Front View").
func (s PhotoSlot) Label() string {
	if l, ok := slotLabels[s]; ok {
		return l
	}
	return "Upload"
}

// Title returns the slot identifier in human Title Case form, used when
// listing missing photos ("exterior_front" -> "Exterior Front").
func (s PhotoSlot) Title() string {
	parts := strings.Split(string(s), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
