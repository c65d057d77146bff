package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
)

// DemoNights is how far ahead Seed opens inventory.
const DemoNights = 180

type storage interface {
	BeginTx(ctx context.Context) (booking.Tx, error)
}

func demoProperties() []*booking.Property {
	return []*booking.Property{
		{
			ID:                  "seaview",
			Name:                "Seaview Resort",
			Code:                "SEA",
			RequiresPrepayment:  true,
			PaymentWindowNights: 3,  //nolint:gomnd
			DepositPercentage:   30, //nolint:gomnd
			CheckInTime:         "14:00",
			CancellationPolicy: booking.CancellationPolicy{
				Type: booking.PolicyStrict,
				Rules: []booking.CancellationRule{
					{WindowHours: 168, RefundPercentage: 100, Description: "7 days or more before check-in"},
					{WindowHours: 72, RefundPercentage: 50, Description: "3 to 7 days before check-in"},
					{WindowHours: 0, RefundPercentage: 0, Description: "less than 3 days before check-in"},
				},
			},
		},
		{
			ID:          "citylodge",
			Name:        "City Lodge",
			Code:        "CTY",
			CheckInTime: "15:00",
			CancellationPolicy: booking.CancellationPolicy{
				Type: booking.PolicyFlexible,
				Rules: []booking.CancellationRule{
					{WindowHours: 0, RefundPercentage: 100, Description: "free cancellation"},
				},
			},
		},
		{
			//nolint:exhaustruct
			ID:                  "hillside",
			Name:                "Hillside Inn",
			RequiresPrepayment:  true,
			PaymentWindowNights: 1,
			DepositAmount:       50, //nolint:gomnd
		},
	}
}

func demoRoomTypes() []*inventory.RoomType {
	//nolint:exhaustruct,gomnd
	return []*inventory.RoomType{
		{PropertyID: "seaview", ID: "deluxe", Name: "Deluxe Sea View", TotalRooms: 10, MaxOccupancy: 2, MaxStayNights: 21, BasePrice: 180},
		{PropertyID: "seaview", ID: "suite", Name: "Family Suite", TotalRooms: 3, MaxOccupancy: 4, MinStayNights: 2, BasePrice: 320},
		{PropertyID: "citylodge", ID: "standard", Name: "Standard Double", TotalRooms: 25, MaxOccupancy: 2, MaxAdvanceDays: 120, BasePrice: 95},
		{PropertyID: "hillside", ID: "cabin", Name: "Cabin", TotalRooms: 4, MaxOccupancy: 3, MinLeadDays: 1, BasePrice: 140},
	}
}

// Seed loads demo properties and room types and opens DemoNights of inventory from today.
// Running it again only fills nights that are still missing.
func Seed(ctx context.Context, l *logger.Logger, storage storage, today time.Time) (err error) {
	tx, err := storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback seed transaction after panic %v", p)
			}

			l.LogInfo("Seed transaction has been roll backed after panic")

			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback seed transaction after error %v", err.Error())
			}

			l.LogInfo("Seed transaction has been roll backed after error")

			return
		}

		if err = tx.Commit(ctx); err != nil {
			l.LogErrorf("Could not commit seed transaction, err %v", err.Error())

			return
		}

		l.LogInfo("Seed transaction has been committed")
	}()

	for _, p := range demoProperties() {
		if err = tx.SaveProperty(ctx, p); err != nil {
			return fmt.Errorf("save property %s: %w", p.ID, err)
		}
	}

	ledger := inventory.NewLedger()
	stay := inventory.NewStay(today, inventory.Date(today).AddDate(0, 0, DemoNights))

	for _, rt := range demoRoomTypes() {
		if err = tx.SaveRoomType(ctx, rt); err != nil {
			return fmt.Errorf("save room type %s: %w", rt.Key(), err)
		}

		var created int

		if created, err = ledger.Open(ctx, tx, rt.Key(), stay, nil); err != nil {
			return fmt.Errorf("open inventory %s: %w", rt.Key(), err)
		}

		l.LogDebugf("Opened %d nights of %s", created, rt.Key())
	}

	return nil
}
