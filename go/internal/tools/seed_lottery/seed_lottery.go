package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"

	"github.com/mcdev12/partdraft/go/internal/dbconfig"
	"github.com/mcdev12/partdraft/go/internal/store/postgres"
)

// Snapshot mirrors the JSON seed file
type Snapshot struct {
	LotteryID   uuid.UUID `json:"lottery_id"`
	Colors      []Color   `json:"colors"`
	Collections []Named   `json:"collections"`
	Items       []Item    `json:"items"`
	Users       []User    `json:"users"`
	Tickets     []Ticket  `json:"tickets"`
	Priorities  []Rank    `json:"priorities"`
}

type Color struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Hex  string    `json:"hex"`
}

type Named struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Item struct {
	ID           uuid.UUID     `json:"id"`
	PartID       uuid.UUID     `json:"part_id"`
	Name         string        `json:"name"`
	ImageURL     *string       `json:"image_url"`
	ColorID      uuid.NullUUID `json:"color_id"`
	CollectionID uuid.NullUUID `json:"collection_id"`
	Value        float64       `json:"value"`
	Quantity     int           `json:"quantity"`
}

type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName *string   `json:"display_name"`
}

type Ticket struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	PurchaseID uuid.UUID `json:"purchase_id"`
}

type Rank struct {
	UserID uuid.UUID `json:"user_id"`
	ItemID uuid.UUID `json:"item_id"`
	Rank   int       `json:"rank"`
}

func main() {
	path := pflag.String("file", "go/internal/assets/lottery.json", "seed snapshot")
	withSchema := pflag.Bool("schema", true, "create tables before seeding")
	pflag.Parse()

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if *withSchema {
		if err := postgres.ApplySchema(ctx, pool); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	// 3) Upsert everything in one transaction
	var inserted int64
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		n, err := seed(ctx, tx, snap)
		inserted = n
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed lottery %s: %v\n", snap.LotteryID, err)
		os.Exit(1)
	}

	// 4) Print summary
	fmt.Printf(
		"Lottery %s seeded: %d items, %d tickets, %d priorities, %d rows inserted\n",
		snap.LotteryID, len(snap.Items), len(snap.Tickets), len(snap.Priorities), inserted,
	)
}

func seed(ctx context.Context, tx pgx.Tx, s Snapshot) (int64, error) {
	batch := &pgx.Batch{}
	for _, c := range s.Colors {
		batch.Queue(`INSERT INTO colors (id, name, hex) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			c.ID, c.Name, c.Hex)
	}
	for _, c := range s.Collections {
		batch.Queue(`INSERT INTO collections (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			c.ID, c.Name)
	}
	for _, i := range s.Items {
		batch.Queue(`
            INSERT INTO lottery_items (
              id, lottery_id, part_id, name, image_url, color_id, collection_id, value, quantity
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            ON CONFLICT (id) DO NOTHING`,
			i.ID, s.LotteryID, i.PartID, i.Name, i.ImageURL, i.ColorID, i.CollectionID, i.Value, i.Quantity)
	}
	for _, u := range s.Users {
		batch.Queue(`INSERT INTO users (id, username, display_name) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			u.ID, u.Username, u.DisplayName)
	}
	for _, t := range s.Tickets {
		batch.Queue(`
            INSERT INTO lottery_tickets (id, lottery_id, user_id, purchase_id)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO NOTHING`,
			t.ID, s.LotteryID, t.UserID, t.PurchaseID)
	}
	for _, p := range s.Priorities {
		batch.Queue(`
            INSERT INTO lottery_priorities (lottery_id, user_id, item_id, rank)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (lottery_id, user_id, item_id) DO UPDATE SET rank = EXCLUDED.rank`,
			s.LotteryID, p.UserID, p.ItemID, p.Rank)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	var inserted int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
