// Package api defines the endpoint paths and JSON wire types shared by
// the wastetrack clients and the reference server.
package api

const (
	RegisterEndpoint        = "/auth/register"
	LoginEndpoint           = "/auth/login"
	MeEndpoint              = "/auth/me"
	AdminCollectorsEndpoint = "/admin/collectors"
	CollectorListEndpoint   = "/locations/admin/collectors"
	LocationUpdateEndpoint  = "/locations/update"
	LocationsEndpoint       = "/locations/collectors"
	LocationStreamEndpoint  = "/locations/stream"
)

// Role strings as they appear in a user's roles set.
const (
	RoleAdmin     = "admin"
	RoleCollector = "collector"
	RoleResident  = "resident"
)

// User is the current-user record returned by /auth/me and embedded in
// auth responses.
type User struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	FullName      string   `json:"fullName"`
	Phone         string   `json:"phone"`
	Roles         []string `json:"roles"`
	IsApproved    bool     `json:"isApproved"`
	VehicleNumber string   `json:"vehicleNumber,omitempty"`
	VehicleType   string   `json:"vehicleType,omitempty"`
}

// RegisterArgs is the body of POST /auth/register. Optional fields are
// omitted from the payload when empty.
type RegisterArgs struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	FullName         string `json:"fullName"`
	Phone            string `json:"phone"`
	Role             string `json:"role,omitempty"`
	VehicleNumber    string `json:"vehicleNumber,omitempty"`
	VehicleType      string `json:"vehicleType,omitempty"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled,omitempty"`
	TwoFactorMethod  string `json:"twoFactorMethod,omitempty"`
}

// LoginArgs is the body of POST /auth/login.
type LoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both register and login. Either the
// two-factor fields are set (challenge pending, no session) or a token
// is issued, possibly with the user record inlined.
type AuthResponse struct {
	TwoFactorRequired bool   `json:"twoFactorRequired,omitempty"`
	TempToken         string `json:"tempToken,omitempty"`
	Token             string `json:"token,omitempty"`
	User              *User  `json:"user,omitempty"`
}

// CreateCollectorArgs is the body of POST /admin/collectors. Vehicle
// fields are included only when non-empty.
type CreateCollectorArgs struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"fullName"`
	Phone         string `json:"phone"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	VehicleType   string `json:"vehicleType,omitempty"`
}

// LocationUpdateArgs is the body of POST /locations/update. Coordinates
// are pointers so an offline marker can omit them entirely.
type LocationUpdateArgs struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	IsOnline  bool     `json:"isOnline"`
}

// CollectorInfo carries vehicle metadata alongside a live location.
type CollectorInfo struct {
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	IsAvailable   *bool  `json:"isAvailable,omitempty"`
}

// LocationRecord is one collector's live location as served by the
// snapshot endpoint and the event stream. Latitude and longitude are
// pointers because the backend may emit null for either.
type LocationRecord struct {
	Latitude      *float64       `json:"latitude"`
	Longitude     *float64       `json:"longitude"`
	Timestamp     string         `json:"timestamp,omitempty"`
	CollectorInfo *CollectorInfo `json:"collectorInfo,omitempty"`
}

// LocationMap is the keyed mapping collector id -> live location that
// both the snapshot endpoint and each stream event carry.
type LocationMap map[string]LocationRecord

// ErrorBody is the backend's error response shape.
type ErrorBody struct {
	Message string `json:"message"`
}
