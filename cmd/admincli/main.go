// The admin CLI: manages collector accounts (list, create, delete)
// through the admin-scoped endpoints.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"wastetrack/admin"
	"wastetrack/api"
	"wastetrack/auth"
	"wastetrack/client"
	"wastetrack/notify"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Backend base URL")
	email     = flag.String("email", "", "Admin account email")
	password  = flag.String("password", "", "Admin account password")
	stateDir  = flag.String("state_dir", auth.DefaultStateDir(), "Session state directory")

	// create fields
	username      = flag.String("username", "", "New collector username")
	fullName      = flag.String("full_name", "", "New collector full name")
	newEmail      = flag.String("collector_email", "", "New collector email")
	phone         = flag.String("phone", "", "New collector phone")
	newPassword   = flag.String("collector_password", "", "New collector password")
	vehicleNumber = flag.String("vehicle_number", "", "New collector vehicle number")
	vehicleType   = flag.String("vehicle_type", "", "New collector vehicle type")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] list|create|delete <userId>\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}

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
	if session.Role() != api.RoleAdmin {
		log.Fatalf("admin role required (current role %q)", session.Role())
	}

	panel := admin.NewPanel(cl, notify.Log(), confirmOnStdin)

	switch flag.Arg(0) {
	case "list":
		panel.Refresh(ctx)
		for _, col := range panel.Collectors() {
			fmt.Printf("%-36s %-16s %-24s %-14s %s %s\n",
				col.ID, col.Username, col.FullName, col.Phone, col.VehicleNumber, col.VehicleType)
		}
	case "create":
		form := panel.Form()
		form.Username = *username
		form.FullName = *fullName
		form.Email = *newEmail
		form.Phone = *phone
		form.Password = *newPassword
		form.VehicleNumber = *vehicleNumber
		form.VehicleType = *vehicleType
		if !panel.Create(ctx) {
			os.Exit(1)
		}
	case "delete":
		if flag.NArg() < 2 {
			usage()
		}
		if !panel.Delete(ctx, flag.Arg(1)) {
			os.Exit(1)
		}
	default:
		usage()
	}
}

func confirmOnStdin(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
