package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/partdraft/go/internal/models"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const loadCatalogSQL = `
SELECT i.id, i.part_id, i.name, i.image_url, i.value::float8, i.quantity,
       c.id, c.name, c.hex, col.id, col.name
FROM lottery_items i
LEFT JOIN colors c ON c.id = i.color_id
LEFT JOIN collections col ON col.id = i.collection_id
WHERE i.lottery_id = $1
ORDER BY i.value DESC, i.id`

const loadRosterSQL = `
SELECT t.id, t.user_id, t.purchase_id, u.username, u.display_name, u.avatar_url
FROM lottery_tickets t
JOIN users u ON u.id = t.user_id
WHERE t.lottery_id = $1
ORDER BY t.created_at, t.id`

const loadPrioritiesSQL = `
SELECT item_id, rank
FROM lottery_priorities
WHERE lottery_id = $1 AND user_id = $2
ORDER BY rank, item_id`

// CatalogStore loads room inputs with pgx.
type CatalogStore struct {
	db Querier
}

func NewCatalogStore(db Querier) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) LoadCatalog(ctx context.Context, lotteryID uuid.UUID) ([]models.Item, error) {
	rows, err := s.db.Query(ctx, loadCatalogSQL, lotteryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var (
			item           models.Item
			imageURL       *string
			colorID        uuid.NullUUID
			colorName      *string
			colorHex       *string
			collectionID   uuid.NullUUID
			collectionName *string
		)
		if err := rows.Scan(
			&item.ID, &item.PartID, &item.Name, &imageURL, &item.Value, &item.Quantity,
			&colorID, &colorName, &colorHex, &collectionID, &collectionName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.ImageURL = deref(imageURL)
		if colorID.Valid {
			item.Color = &models.Color{ID: colorID.UUID, Name: deref(colorName), Hex: deref(colorHex)}
		}
		if collectionID.Valid {
			item.Collection = &models.Collection{ID: collectionID.UUID, Name: deref(collectionName)}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return items, nil
}

func (s *CatalogStore) LoadRoster(ctx context.Context, lotteryID uuid.UUID) ([]models.Ticket, error) {
	rows, err := s.db.Query(ctx, loadRosterSQL, lotteryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var (
			t           models.Ticket
			displayName *string
			avatarURL   *string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.PurchaseID, &t.User.Username, &displayName, &avatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		t.User.ID = t.UserID
		t.User.DisplayName = deref(displayName)
		t.User.AvatarURL = deref(avatarURL)
		t.Status = models.TicketStatusWaiting
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	return tickets, nil
}

func (s *CatalogStore) LoadPriorities(ctx context.Context, lotteryID, userID uuid.UUID) ([]models.PriorityEntry, error) {
	rows, err := s.db.Query(ctx, loadPrioritiesSQL, lotteryID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query priorities: %w", err)
	}
	defer rows.Close()

	var prios []models.PriorityEntry
	for rows.Next() {
		p := models.PriorityEntry{UserID: userID}
		if err := rows.Scan(&p.ItemID, &p.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan priority: %w", err)
		}
		prios = append(prios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read priorities: %w", err)
	}
	return prios, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
