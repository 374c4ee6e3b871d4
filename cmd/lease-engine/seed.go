/*
seed.go - Demo dataset loader

Loads a landlord, a tenant, two properties, and one lease with its
generated payment schedule. Intended for local development and demos; run
against a fresh database.
*/
package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/lifecycle"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a small demo dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := openEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if err := seed(ctx, engine, store); err != nil {
				return err
			}
			fmt.Println("demo data loaded")
			return nil
		},
	}
}

func seed(ctx context.Context, engine *lifecycle.Orchestrator, store interface {
	SaveUser(ctx context.Context, u lifecycle.User) error
	SaveProperty(ctx context.Context, p lifecycle.Property) error
}) error {
	users := []lifecycle.User{
		{ID: "landlord-rita", Role: lifecycle.RoleLandlord},
		{ID: "tenant-bikash", Role: lifecycle.RoleTenant},
		{ID: "admin-ops", Role: lifecycle.RoleAdmin},
	}
	for _, u := range users {
		if err := store.SaveUser(ctx, u); err != nil {
			return err
		}
	}

	properties := []lifecycle.Property{
		{
			ID:         "prop-baluwatar-2bhk",
			LandlordID: "landlord-rita",
			Status:     lifecycle.PropertyAvailable,
			Price:      decimal.NewFromInt(35000),
			Deposit:    decimal.NewFromInt(70000),
		},
		{
			ID:         "prop-patan-studio",
			LandlordID: "landlord-rita",
			Status:     lifecycle.PropertyAvailable,
			Price:      decimal.NewFromInt(18000),
			Deposit:    decimal.NewFromInt(36000),
		},
	}
	for _, p := range properties {
		if err := store.SaveProperty(ctx, p); err != nil {
			return err
		}
	}

	start := dates.AddDays(dates.Today(), 7)
	_, err := engine.CreateManual(ctx, lifecycle.CreateLeaseRequest{
		PropertyID:        "prop-baluwatar-2bhk",
		TenantID:          "tenant-bikash",
		StartDate:         start,
		EndDate:           dates.AddMonths(start, 12),
		MonthlyRent:       decimal.NewFromInt(35000),
		SecurityDeposit:   decimal.NewFromInt(70000),
		NumberOfOccupants: 2,
		SpecialTerms:      "No subletting. Utilities billed separately.",
	}, "landlord-rita")
	if err != nil {
		return fmt.Errorf("seeding lease: %w", err)
	}

	return nil
}
