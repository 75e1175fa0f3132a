package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"counselgo/client/internal/apiclient"
	"counselgo/client/internal/models"

	"go.uber.org/zap"
)

func main() {
	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		log.Fatal("API_BASE_URL is required but not set")
	}

	api := apiclient.New(baseURL, zap.NewNop())
	ctx := context.Background()

	token := os.Getenv("API_TOKEN")
	if token == "" {
		anon, err := api.NewAnonSession(ctx, models.RoleAdmin)
		if err != nil {
			log.Fatalf("failed to open admin session: %v", err)
		}
		token = anon.Token
	}
	api.TokenProvider = func() string { return token }

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: pending | count | counselors | assign <meeting_id> <counselor_id>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "pending":
		meetings, err := api.PendingRequests(ctx)
		if err != nil {
			log.Fatalf("Error fetching pending requests: %v", err)
		}
		if len(meetings) == 0 {
			fmt.Println("No pending requests.")
			return
		}
		for _, m := range meetings {
			fmt.Printf("%s  %-9s  %s\n", m.ID, m.MeetingType, m.IssueDescription)
		}
	case "count":
		count, err := api.PendingCount(ctx)
		if err != nil {
			log.Fatalf("Error fetching pending count: %v", err)
		}
		fmt.Printf("%d pending request(s)\n", count)
	case "counselors":
		counselors, err := api.ActiveCounselors(ctx)
		if err != nil {
			log.Fatalf("Error fetching counselors: %v", err)
		}
		for _, c := range counselors {
			fmt.Printf("%s  %-10s  %s  (%d/%d)\n", c.ID, c.Name, c.Specialty, c.ActiveClients, c.Capacity)
		}
	case "assign":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin assign <meeting_id> <counselor_id>")
			os.Exit(1)
		}
		meeting, err := api.AssignCounselor(ctx, models.AssignCounselorRequest{
			MeetingID:   os.Args[2],
			CounselorID: os.Args[3],
		})
		if err != nil {
			log.Fatalf("Error assigning counselor: %v", err)
		}
		fmt.Printf("Meeting %s is now %s (counselor %s).\n", meeting.ID, meeting.Status, meeting.CounselorID)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}
