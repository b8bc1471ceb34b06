package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/squaresync/internal/model"
	"github.com/iurnickita/squaresync/internal/store/config"
)

type Store interface {
	CredentialGetLatest(ctx context.Context) (model.Credential, error)
	CredentialUpsert(ctx context.Context, credential model.Credential) error
	SalesOrderUpsert(ctx context.Context, order model.SalesOrder) (int64, error)
	SalesOrderItemsReplace(ctx context.Context, salesOrderID int64, items []model.SalesOrderItem) error
	Close() error
}

var (
	ErrNoRows       = errors.New("no rows")
	ErrEmptyOrderID = errors.New("empty square order id")
)

type pgStore struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Таблица токенов Square.
	// Одна строка на мерчанта, повторная авторизация перезаписывает токены
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS square_tokens (" +
			" id SERIAL PRIMARY KEY," +
			" merchant_id VARCHAR (64) NOT NULL UNIQUE," +
			" access_token TEXT NOT NULL," +
			" refresh_token TEXT," +
			" expires_at TIMESTAMPTZ," +
			" short_lived BOOLEAN NOT NULL DEFAULT FALSE," +
			" created_at TIMESTAMPTZ NOT NULL DEFAULT now()" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	// Таблица заказов.
	// Ключ - идентификатор заказа Square, импорт можно повторять
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS sales_orders (" +
			" id SERIAL PRIMARY KEY," +
			" square_order_id VARCHAR (64) NOT NULL UNIQUE," +
			" merchant_id VARCHAR (64)," +
			" location_id VARCHAR (64) NOT NULL," +
			" state VARCHAR (20)," +
			" created_at_utc TIMESTAMPTZ," +
			" closed_at_utc TIMESTAMPTZ," +
			" updated_at_utc TIMESTAMPTZ," +
			" total_money_cents BIGINT," +
			" total_discount_cents BIGINT," +
			" total_tax_cents BIGINT," +
			" total_tip_cents BIGINT" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	// Таблица позиций заказа.
	// Позиции пересоздаются при каждом импорте заказа
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS sales_order_items (" +
			" id SERIAL PRIMARY KEY," +
			" sales_order_id INTEGER NOT NULL REFERENCES sales_orders (id) ON DELETE CASCADE," +
			" catalog_object_id VARCHAR (64)," +
			" sku VARCHAR (64)," +
			" item_name TEXT," +
			" variation_name TEXT," +
			" quantity NUMERIC NOT NULL DEFAULT 0," +
			" gross_sales_cents BIGINT," +
			" discount_cents BIGINT," +
			" net_sales_cents BIGINT" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &pgStore{
		database: db,
	}, nil
}

func (store *pgStore) CredentialGetLatest(ctx context.Context) (model.Credential, error) {
	//Получение последнего токена
	var credential model.Credential
	var refreshToken sql.NullString
	var expiresAt sql.NullTime
	row := store.database.QueryRowContext(ctx,
		"SELECT id, merchant_id, access_token, refresh_token, expires_at, short_lived, created_at"+
			" FROM square_tokens"+
			" ORDER BY created_at DESC, id DESC"+
			" LIMIT 1")
	err := row.Scan(&credential.ID,
		&credential.MerchantID,
		&credential.AccessToken,
		&refreshToken,
		&expiresAt,
		&credential.ShortLived,
		&credential.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Credential{}, ErrNoRows
		}
		return model.Credential{}, err
	}
	credential.RefreshToken = refreshToken.String
	credential.ExpiresAt = expiresAt.Time

	return credential, nil
}

func (store *pgStore) CredentialUpsert(ctx context.Context, credential model.Credential) error {
	//Запись токена, при конфликте по мерчанту - перезапись
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO square_tokens (merchant_id, access_token, refresh_token, expires_at, short_lived)"+
			" VALUES ($1, $2, $3, $4, $5)"+
			" ON CONFLICT (merchant_id) DO UPDATE SET"+
			"   access_token = EXCLUDED.access_token,"+
			"   refresh_token = EXCLUDED.refresh_token,"+
			"   expires_at = EXCLUDED.expires_at,"+
			"   short_lived = EXCLUDED.short_lived",
		credential.MerchantID,
		credential.AccessToken,
		nullString(credential.RefreshToken),
		nullTime(credential.ExpiresAt),
		credential.ShortLived)
	return err
}

func (store *pgStore) SalesOrderUpsert(ctx context.Context, order model.SalesOrder) (int64, error) {
	if order.SquareOrderID == "" {
		return 0, ErrEmptyOrderID
	}

	//Запись заказа, возвращает внутренний id строки
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO sales_orders (square_order_id, merchant_id, location_id, state,"+
			" created_at_utc, closed_at_utc, updated_at_utc,"+
			" total_money_cents, total_discount_cents, total_tax_cents, total_tip_cents)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)"+
			" ON CONFLICT (square_order_id) DO UPDATE SET"+
			"   merchant_id = EXCLUDED.merchant_id,"+
			"   location_id = EXCLUDED.location_id,"+
			"   state = EXCLUDED.state,"+
			"   created_at_utc = EXCLUDED.created_at_utc,"+
			"   closed_at_utc = EXCLUDED.closed_at_utc,"+
			"   updated_at_utc = EXCLUDED.updated_at_utc,"+
			"   total_money_cents = EXCLUDED.total_money_cents,"+
			"   total_discount_cents = EXCLUDED.total_discount_cents,"+
			"   total_tax_cents = EXCLUDED.total_tax_cents,"+
			"   total_tip_cents = EXCLUDED.total_tip_cents"+
			" RETURNING id",
		order.SquareOrderID,
		nullString(order.MerchantID),
		order.LocationID,
		order.State,
		order.CreatedAtUTC,
		order.ClosedAtUTC,
		order.UpdatedAtUTC,
		order.TotalMoneyCents,
		order.TotalDiscountCents,
		order.TotalTaxCents,
		order.TotalTipCents)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (store *pgStore) SalesOrderItemsReplace(ctx context.Context, salesOrderID int64, items []model.SalesOrderItem) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	//Удаление старых позиций
	_, err = tx.ExecContext(ctx,
		"DELETE FROM sales_order_items WHERE sales_order_id = $1",
		salesOrderID)
	if err != nil {
		return err
	}

	//Запись новых позиций
	for _, item := range items {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO sales_order_items (sales_order_id, catalog_object_id, sku, item_name, variation_name,"+
				" quantity, gross_sales_cents, discount_cents, net_sales_cents)"+
				" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
			salesOrderID,
			item.CatalogObjectID,
			item.SKU,
			item.ItemName,
			item.VariationName,
			item.Quantity,
			item.GrossSalesCents,
			item.DiscountCents,
			item.NetSalesCents)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (store *pgStore) Close() error {
	return store.database.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
