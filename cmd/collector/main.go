// The collector agent: signs in, shares the vehicle position on a
// fixed cadence, and sends an offline marker when asked to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"

	"wastetrack/api"
	"wastetrack/auth"
	"wastetrack/client"
	"wastetrack/geoloc"
	"wastetrack/notify"
	"wastetrack/publisher"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Backend base URL")
	email     = flag.String("email", "", "Collector account email")
	password  = flag.String("password", "", "Collector account password")
	stateDir  = flag.String("state_dir", auth.DefaultStateDir(), "Session state directory")
	baseLat   = flag.Float64("lat", 13.4549, "Simulated route center latitude")
	baseLng   = flag.Float64("lng", -16.5790, "Simulated route center longitude")
	radiusM   = flag.Float64("radius_m", 500, "Simulated route radius in meters")
	interval  = flag.Duration("upload_interval", publisher.DefaultInterval, "Location upload interval")
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
		} else if res.TwoFactorRequired {
			log.Fatal("account requires a second factor; complete the challenge elsewhere first")
		}
	} else {
		session.Restore(ctx)
	}

	user := session.User()
	if user == nil {
		log.Fatal("not signed in; pass -email and -password")
	}
	if session.Role() != api.RoleCollector {
		log.Fatalf("account %s is not a collector (role %q)", user.Email, session.Role())
	}
	if !session.IsApproved() {
		log.Warn("account is not approved yet; uploads may be rejected")
	}

	geo := geoloc.NewSimProvider(*baseLat, *baseLng, *radiusM, 2*time.Second)
	pub := publisher.New(cl, geo, notify.Log(), user.ID)
	pub.SetInterval(*interval)
	pub.OnPreview = func(pos geoloc.Position) {
		log.Debugf("position %.5f,%.5f", pos.Latitude, pos.Longitude)
	}

	pub.Start(ctx)
	log.Infof("sharing location as %s (%s); Ctrl-C to stop", user.FullName, user.ID)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	// Graceful stop sends the offline marker; give it a bounded
	// window.
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pub.Stop(stopCtx)
}
