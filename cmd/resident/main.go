// The resident tracker: follows the live collector feed and prints the
// current truck positions, optionally with the distance from a
// reference point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/apex/log"
	"github.com/golang/geo/s2"

	"wastetrack/auth"
	"wastetrack/client"
	"wastetrack/models"
	"wastetrack/tracker"
)

const earthRadiusM = 6371000.0

var (
	serverURL = flag.String("server", "http://localhost:8080", "Backend base URL")
	email     = flag.String("email", "", "Resident account email")
	password  = flag.String("password", "", "Resident account password")
	stateDir  = flag.String("state_dir", auth.DefaultStateDir(), "Session state directory")
	near      = flag.String("near", "", "Reference point lat,lng for distance display")
)

func main() {
	flag.Parse()

	store, err := auth.NewStateStore(*stateDir)
	if err != nil {
		log.Fatalf("failed to open state store: %v", err)
	}
	cl := client.New(*serverURL, store)
	session := auth.NewManager(cl, store, nil)

	ctx := context.Background()

	if *email != "" {
		if res := session.SignIn(ctx, *email, *password); res.Err != nil {
			log.Fatalf("sign in failed: %s", res.Err.Message)
		}
	} else {
		session.Restore(ctx)
	}
	if !session.SignedIn() {
		log.Fatal("not signed in; pass -email and -password")
	}

	var ref *s2.LatLng
	if *near != "" {
		pt, err := parseLatLng(*near)
		if err != nil {
			log.Fatalf("invalid -near value: %v", err)
		}
		ref = &pt
	}

	tr := tracker.New(cl, func(markers []models.Marker) {
		render(markers, ref)
	})
	tr.Start(ctx)
	log.Infof("tracking collection trucks via %s; Ctrl-C to stop", *serverURL)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	tr.Stop()
}

func render(markers []models.Marker, ref *s2.LatLng) {
	if len(markers) == 0 {
		fmt.Println("No active trucks")
		return
	}
	for _, m := range markers {
		status := "Available"
		if !m.Available {
			status = "On Job"
		}
		line := fmt.Sprintf("%-20s %9.4f,%9.4f  %s", m.Vehicle, m.Latitude, m.Longitude, status)
		if ref != nil {
			pos := s2.LatLngFromDegrees(m.Latitude, m.Longitude)
			distM := ref.Distance(pos).Radians() * earthRadiusM
			line += fmt.Sprintf("  %.0fm away", distM)
		}
		if m.LastUpdate != "" {
			line += "  updated " + m.LastUpdate
		}
		fmt.Println(line)
	}
	fmt.Println(strings.Repeat("-", 40))
}

func parseLatLng(s string) (s2.LatLng, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return s2.LatLng{}, fmt.Errorf("expected lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return s2.LatLng{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return s2.LatLng{}, err
	}
	return s2.LatLngFromDegrees(lat, lng), nil
}
