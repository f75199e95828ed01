package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dense-analysis/pricetracker/internal/database"
	"github.com/dense-analysis/pricetracker/internal/model"
)

// Postgres stores assets in the crypto_asset and crypto_price_history tables.
type Postgres struct {
	conn *database.Conn
}

// NewPostgres creates a store over an open connection.
func NewPostgres(conn *database.Conn) *Postgres {
	return &Postgres{conn: conn}
}

var assetColumns = `a.id, a.external_id, a.name, a.symbol, a.currency, a.icon_url`

func scanSnapshot(row database.Row, snapshot *AssetSnapshot) error {
	asset := &model.Asset{}
	var lastHistory *time.Time

	if err := row.Scan(
		&asset.ID,
		&asset.ExternalID,
		&asset.Name,
		&asset.Symbol,
		&asset.Currency,
		&asset.IconURL,
		&lastHistory,
	); err != nil {
		return err
	}

	if lastHistory != nil {
		utc := lastHistory.UTC()
		lastHistory = &utc
	}

	snapshot.Asset = asset
	snapshot.LastHistory = lastHistory

	return nil
}

func (s *Postgres) LoadAssets(ctx context.Context) ([]AssetSnapshot, error) {
	var snapshots []AssetSnapshot

	err := model.LoadList(
		ctx,
		s.conn,
		&snapshots,
		500,
		scanSnapshot,
		`select `+assetColumns+`, (
			select max(h.time) from crypto_price_history as h where h.asset_id = a.id
		)
		from crypto_asset as a
		order by a.id`,
	)

	return snapshots, err
}

var insertAssetQuery = `
insert into crypto_asset (external_id, name, symbol, currency, icon_url)
values ($1, $2, $3, $4, $5)
returning id
`

var updateAssetQuery = `
update crypto_asset
set name = $2, symbol = $3, icon_url = $4
where id = $1
`

var insertHistoryQuery = `
insert into crypto_price_history (asset_id, time, price)
values ($1, $2, $3::numeric)
`

func (s *Postgres) CommitPage(ctx context.Context, changes *Changes) error {
	if changes.Empty() {
		return nil
	}

	tx, err := s.conn.Begin(ctx)

	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// IDs are only copied onto the assets once the transaction commits.
	newIDs := make([]int64, len(changes.NewAssets))

	for i, asset := range changes.NewAssets {
		row := tx.QueryRow(
			ctx,
			insertAssetQuery,
			asset.ExternalID,
			asset.Name,
			asset.Symbol,
			asset.Currency,
			asset.IconURL,
		)

		if err := row.Scan(&newIDs[i]); err != nil {
			return err
		}
	}

	batch := &database.Batch{}

	for _, asset := range changes.UpdatedAssets {
		batch.Queue(updateAssetQuery, asset.ID, asset.Name, asset.Symbol, asset.IconURL)
	}

	newIndex := make(map[*model.Asset]int, len(changes.NewAssets))

	for i, asset := range changes.NewAssets {
		newIndex[asset] = i
	}

	for _, entry := range changes.History {
		assetID := entry.Asset.ID

		if i, ok := newIndex[entry.Asset]; ok {
			assetID = newIDs[i]
		}

		batch.Queue(insertHistoryQuery, assetID, entry.Time.UTC(), entry.Price.String())
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	for i, asset := range changes.NewAssets {
		asset.ID = newIDs[i]
	}

	return nil
}

type historyRow struct {
	asset model.Asset
	time  *time.Time
	price *string
}

func scanHistoryRow(row database.Row, result *historyRow) error {
	return row.Scan(
		&result.asset.ID,
		&result.asset.ExternalID,
		&result.asset.Name,
		&result.asset.Symbol,
		&result.asset.Currency,
		&result.asset.IconURL,
		&result.time,
		&result.price,
	)
}

func (s *Postgres) RecentHistory(ctx context.Context, limit int) ([]AssetHistory, error) {
	var rows []historyRow

	if err := model.LoadList(
		ctx,
		s.conn,
		&rows,
		500,
		scanHistoryRow,
		`select `+assetColumns+`, h.time, h.price::text
		from crypto_asset as a
		left join lateral (
			select time, price
			from crypto_price_history
			where asset_id = a.id
			order by time desc
			limit $1
		) as h on true
		order by a.id, h.time desc`,
		limit,
	); err != nil {
		return nil, err
	}

	var result []AssetHistory

	for _, row := range rows {
		if len(result) == 0 || result[len(result)-1].Asset.ID != row.asset.ID {
			result = append(result, AssetHistory{Asset: row.asset})
		}

		if row.time == nil || row.price == nil {
			continue
		}

		price, err := decimal.NewFromString(*row.price)

		if err != nil {
			return nil, err
		}

		current := &result[len(result)-1]
		current.Entries = append(current.Entries, model.HistoryEntry{
			AssetID: row.asset.ID,
			Time:    row.time.UTC(),
			Price:   price,
		})
	}

	return result, nil
}

func scanHistoryEntry(row database.Row, entry *model.HistoryEntry) error {
	var price string

	if err := row.Scan(&entry.AssetID, &entry.Time, &price); err != nil {
		return err
	}

	value, err := decimal.NewFromString(price)

	if err != nil {
		return err
	}

	entry.Time = entry.Time.UTC()
	entry.Price = value

	return nil
}

func (s *Postgres) HistorySince(ctx context.Context, assetID int64, since time.Time) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry

	err := model.LoadList(
		ctx,
		s.conn,
		&entries,
		64,
		scanHistoryEntry,
		`select asset_id, time, price::text
		from crypto_price_history
		where asset_id = $1 and time >= $2
		order by time`,
		assetID,
		since.UTC(),
	)

	return entries, err
}

// DeleteAsset removes the history rows before the asset, in one transaction.
func (s *Postgres) DeleteAsset(ctx context.Context, assetID int64) error {
	tx, err := s.conn.Begin(ctx)

	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `delete from crypto_price_history where asset_id = $1`, assetID); err != nil {
		return err
	}

	deleted, err := tx.Exec(ctx, `delete from crypto_asset where id = $1`, assetID)

	if err != nil {
		return err
	}

	if deleted == 0 {
		return ErrAssetNotFound
	}

	return tx.Commit(ctx)
}
