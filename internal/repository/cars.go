package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/karmankarshows/carshow/internal/models"
)

const carSelect = `
	SELECT c.id, c.show_id, c.person_id, c.car_number, c.car_token, c.year, c.make, c.model, c.created_at,
		p.id, p.name, p.phone, p.email, p.opt_in_future
	FROM cars c
	LEFT JOIN people p ON p.id = c.person_id`

func scanCar(row rowScanner) (*models.Car, error) {
	var car models.Car
	var personID, ownerID sql.NullInt64
	var year, carMake, carModel sql.NullString
	var ownerName, ownerPhone, ownerEmail sql.NullString
	var ownerOptIn sql.NullBool
	err := row.Scan(&car.ID, &car.ShowID, &personID, &car.CarNumber, &car.Token, &year, &carMake, &carModel, &car.CreatedAt,
		&ownerID, &ownerName, &ownerPhone, &ownerEmail, &ownerOptIn)
	if err != nil {
		return nil, err
	}
	car.Year = year.String
	car.Make = carMake.String
	car.Model = carModel.String
	if personID.Valid {
		id := personID.Int64
		car.PersonID = &id
	}
	if ownerID.Valid {
		car.Owner = &models.Person{
			ID:          ownerID.Int64,
			Name:        ownerName.String,
			Phone:       ownerPhone.String,
			Email:       ownerEmail.String,
			OptInFuture: ownerOptIn.Bool,
		}
	}
	return &car, nil
}

// GetCarByToken resolves a car by its opaque token, scoped to a show.
func (r *Repository) GetCarByToken(ctx context.Context, showID int64, token string) (*models.Car, error) {
	car, err := scanCar(r.db.QueryRowContext(ctx, carSelect+` WHERE c.show_id = ? AND c.car_token = ?`, showID, token))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return car, err
}

// GetCar retrieves a car by ID.
func (r *Repository) GetCar(ctx context.Context, id int64) (*models.Car, error) {
	car, err := scanCar(r.db.QueryRowContext(ctx, carSelect+` WHERE c.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return car, err
}

// ListCars returns every car in a show ordered by car number.
func (r *Repository) ListCars(ctx context.Context, showID int64) ([]models.Car, error) {
	rows, err := r.db.QueryContext(ctx, carSelect+` WHERE c.show_id = ? ORDER BY c.car_number`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cars []models.Car
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, *car)
	}
	return cars, rows.Err()
}

// CarNumberTaken reports whether a number is already used within a show.
func (r *Repository) CarNumberTaken(ctx context.Context, showID int64, carNumber int) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cars WHERE show_id = ? AND car_number = ?`, showID, carNumber).Scan(&count)
	return count > 0, err
}

// CreateCar inserts a car. A collision on (show, car_number) or token returns ErrDuplicate.
func (r *Repository) CreateCar(ctx context.Context, car models.Car) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO cars (show_id, person_id, car_number, car_token, year, make, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		car.ShowID, car.PersonID, car.CarNumber, car.Token, car.Year, car.Make, car.Model, r.now())
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// RegisterCar creates the owner and the car in one transaction.
func (r *Repository) RegisterCar(ctx context.Context, owner models.Person, car models.Car) (int64, error) {
	var carID int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		personID, err := insertPerson(ctx, tx, owner, r.now())
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO cars (show_id, person_id, car_number, car_token, year, make, model, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			car.ShowID, personID, car.CarNumber, car.Token, car.Year, car.Make, car.Model, r.now())
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return err
		}
		carID, err = result.LastInsertId()
		return err
	})
	return carID, err
}

// CheckInCar attaches owner details to a car. Placeholders get a new person row;
// cars that already have an owner get that owner updated.
func (r *Repository) CheckInCar(ctx context.Context, carID int64, owner models.Person, year, carMake, carModel string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var personID sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT person_id FROM cars WHERE id = ?`, carID).Scan(&personID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		now := r.now()
		if personID.Valid {
			_, err = tx.ExecContext(ctx,
				`UPDATE people SET name = ?, phone = ?, email = ?, opt_in_future = ?, updated_at = ? WHERE id = ?`,
				owner.Name, owner.Phone, owner.Email, owner.OptInFuture, now, personID.Int64)
			if err != nil {
				return err
			}
		} else {
			id, err := insertPerson(ctx, tx, owner, now)
			if err != nil {
				return err
			}
			personID = sql.NullInt64{Int64: id, Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE cars SET person_id = ?, year = ?, make = ?, model = ? WHERE id = ?`,
			personID.Int64, year, carMake, carModel, carID)
		return err
	})
}

func insertPerson(ctx context.Context, tx *sql.Tx, p models.Person, now time.Time) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO people (name, phone, email, opt_in_future, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Phone, p.Email, p.OptInFuture, now, now)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
