package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/proconitumbiara/procon-app-sub000/internal/models"
	"github.com/proconitumbiara/procon-app-sub000/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateSector(ctx context.Context, name string) (models.Sector, error) {
	var sector models.Sector
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sectors (sector_id, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING sector_id, name, created_at
	`, uuid.NewString(), name, time.Now().UTC())
	if err := row.Scan(&sector.SectorID, &sector.Name, &sector.CreatedAt); err != nil {
		return models.Sector{}, err
	}
	return sector, nil
}

func (s *Store) ListSectors(ctx context.Context) ([]models.Sector, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sector_id, name, created_at FROM sectors ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sectors []models.Sector
	for rows.Next() {
		var sector models.Sector
		if err := rows.Scan(&sector.SectorID, &sector.Name, &sector.CreatedAt); err != nil {
			return nil, err
		}
		sectors = append(sectors, sector)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sectors, nil
}

// DeleteSector removes a sector; service points and tickets go with it via
// cascading foreign keys.
func (s *Store) DeleteSector(ctx context.Context, sectorID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sectors WHERE sector_id = $1`, sectorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrSectorNotFound
	}
	return nil
}

func (s *Store) CreateServicePoint(ctx context.Context, sectorID, name string, preferredPriority int) (models.ServicePoint, error) {
	var point models.ServicePoint
	row := s.pool.QueryRow(ctx, `
		INSERT INTO service_points (service_point_id, sector_id, name, availability, preferred_priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING service_point_id, sector_id, name, availability, preferred_priority
	`, uuid.NewString(), sectorID, name, models.AvailabilityFree, preferredPriority)
	if err := row.Scan(&point.ServicePointID, &point.SectorID, &point.Name, &point.Availability, &point.PreferredPriority); err != nil {
		if isForeignKeyViolation(err) {
			return models.ServicePoint{}, store.ErrSectorNotFound
		}
		return models.ServicePoint{}, err
	}
	return point, nil
}

func (s *Store) ListServicePoints(ctx context.Context, sectorID string) ([]models.ServicePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT service_point_id, sector_id, name, availability, preferred_priority
		FROM service_points
		WHERE sector_id = $1
		ORDER BY name ASC
	`, sectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.ServicePoint
	for rows.Next() {
		var point models.ServicePoint
		if err := rows.Scan(&point.ServicePointID, &point.SectorID, &point.Name, &point.Availability, &point.PreferredPriority); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) CreateClient(ctx context.Context, registerNumber, name string) (models.Client, error) {
	var client models.Client
	row := s.pool.QueryRow(ctx, `
		INSERT INTO clients (client_id, register_number, name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING client_id, register_number, name, created_at
	`, uuid.NewString(), registerNumber, name, time.Now().UTC())
	if err := row.Scan(&client.ClientID, &client.RegisterNumber, &client.Name, &client.CreatedAt); err != nil {
		return models.Client{}, mapConstraint(err)
	}
	return client, nil
}

func (s *Store) GetClientByRegister(ctx context.Context, registerNumber string) (models.Client, bool, error) {
	var client models.Client
	row := s.pool.QueryRow(ctx, `
		SELECT client_id, register_number, name, created_at
		FROM clients
		WHERE register_number = $1
	`, registerNumber)
	if err := row.Scan(&client.ClientID, &client.RegisterNumber, &client.Name, &client.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Client{}, false, nil
		}
		return models.Client{}, false, err
	}
	return client, true, nil
}
