// Package models holds the canonical client-side view models and the
// normalization rules that turn raw backend records into them.
package models

import (
	"fmt"
	"sort"

	"wastetrack/api"
)

// DeriveRole picks the effective role from a user's roles set:
// admin wins, then collector, then resident, then the first listed
// role. An empty or nil set yields "".
func DeriveRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	for _, want := range []string{api.RoleAdmin, api.RoleCollector, api.RoleResident} {
		for _, r := range roles {
			if r == want {
				return want
			}
		}
	}
	return roles[0]
}

// CollectorView is the canonical collector record rendered by the admin
// panel, regardless of which shape the backend sent it in.
type CollectorView struct {
	ID            string
	Username      string
	FullName      string
	Email         string
	Phone         string
	VehicleNumber string
	VehicleType   string
}

// NormalizeCollector flattens a raw collector record. The admin list
// endpoint returns either a flat record or one nesting the user fields
// under a userId reference; each field resolves through an ordered
// fallback chain, flat value first, nested value second.
func NormalizeCollector(raw map[string]any) CollectorView {
	nested, _ := raw["userId"].(map[string]any)

	v := CollectorView{
		ID:            firstString(raw, nested, "userId", "_id", "id"),
		Username:      firstString(raw, nested, "username"),
		FullName:      firstString(raw, nested, "fullName", "name"),
		Email:         firstString(raw, nested, "email"),
		Phone:         firstString(raw, nested, "phone"),
		VehicleNumber: stringField(raw, "vehicleNumber"),
		VehicleType:   stringField(raw, "vehicleType"),
	}
	if v.ID == "" {
		v.ID = firstString(raw, nested, "collectorId")
	}
	return v
}

// firstString resolves a field from the flat record first and the
// nested user record second, trying each key in order.
func firstString(flat, nested map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(flat, k); s != "" {
			return s
		}
	}
	for _, k := range keys {
		if s := stringField(nested, k); s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Marker is one collector position ready for display.
type Marker struct {
	CollectorID string
	Latitude    float64
	Longitude   float64
	LastUpdate  string
	Vehicle     string
	Available   bool
}

// BuildMarkers turns a keyed location payload into the displayable
// marker list. Entries missing either coordinate are dropped. The
// result is sorted by collector id so successive renders are stable.
func BuildMarkers(locations api.LocationMap) []Marker {
	markers := make([]Marker, 0, len(locations))
	for id, rec := range locations {
		if rec.Latitude == nil || rec.Longitude == nil {
			continue
		}
		m := Marker{
			CollectorID: id,
			Latitude:    *rec.Latitude,
			Longitude:   *rec.Longitude,
			LastUpdate:  rec.Timestamp,
			Vehicle:     fmt.Sprintf("Collector %s", id),
			Available:   true,
		}
		if info := rec.CollectorInfo; info != nil {
			if info.VehicleNumber != "" {
				m.Vehicle = info.VehicleNumber
			}
			if info.IsAvailable != nil {
				m.Available = *info.IsAvailable
			}
		}
		markers = append(markers, m)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].CollectorID < markers[j].CollectorID })
	return markers
}
