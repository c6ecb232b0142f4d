package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
)

// MaxPlaceholders is the most placeholder cars one request may create.
const MaxPlaceholders = 1000

// QRSize is the default edge length of generated QR codes in pixels.
const QRSize = 256

// CarService handles car registration, check-in and print links
type CarService struct {
	log      logger.Logger
	repo     repository.CarRepository
	baseURL  string
	clock    func() time.Time
	newToken func() string
}

// NewCarService creates a new CarService. baseURL is used for printed links.
func NewCarService(log logger.Logger, repo repository.CarRepository, baseURL string) *CarService {
	return &CarService{
		log:      log,
		repo:     repo,
		baseURL:  strings.TrimRight(baseURL, "/"),
		clock:    time.Now,
		newToken: uuid.NewString,
	}
}

// SetClock replaces the time source used for admin session checks.
func (s *CarService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Registration is a walk-up registration: owner plus car.
type Registration struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	OptInFuture bool   `json:"opt_in_future"`
	CarNumber   int    `json:"car_number"`
	Year        string `json:"year"`
	Make        string `json:"make"`
	Model       string `json:"model"`
}

// CheckIn is the owner and car detail submitted for a pre-printed card.
type CheckIn struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	OptInFuture bool   `json:"opt_in_future"`
	Year        string `json:"year"`
	Make        string `json:"make"`
	Model       string `json:"model"`
}

// PublicCar is what voters see. It carries no owner details.
type PublicCar struct {
	CarNumber int    `json:"car_number"`
	Year      string `json:"year"`
	Make      string `json:"make"`
	Model     string `json:"model"`
}

// CategoryLink is a vote URL for one category.
type CategoryLink struct {
	Category models.Category `json:"category"`
	URL      string          `json:"url"`
}

// VoteLinks are the URLs printed on a windshield card.
type VoteLinks struct {
	CarNumber  int            `json:"car_number"`
	CheckInURL string         `json:"checkin_url"`
	Categories []CategoryLink `json:"categories"`
}

// Register creates the owner and the car. Car numbers are never reassigned.
func (s *CarService) Register(ctx context.Context, showID int64, reg Registration) (*models.Car, error) {
	reg = trimRegistration(reg)
	if reg.Name == "" || reg.Phone == "" || reg.Email == "" || reg.Year == "" || reg.Make == "" || reg.Model == "" {
		return nil, ErrMissingFields
	}
	if reg.CarNumber <= 0 {
		return nil, ErrInvalidCarNumber
	}

	owner := models.Person{Name: reg.Name, Phone: reg.Phone, Email: reg.Email, OptInFuture: reg.OptInFuture}
	car := models.Car{
		ShowID:    showID,
		CarNumber: reg.CarNumber,
		Token:     s.newToken(),
		Year:      reg.Year,
		Make:      reg.Make,
		Model:     reg.Model,
	}
	id, err := s.repo.RegisterCar(ctx, owner, car)
	if stderrors.Is(err, repository.ErrDuplicate) {
		return nil, ErrCarNumberTaken
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("Car registered", "show_id", showID, "car_number", reg.CarNumber)
	return s.repo.GetCar(ctx, id)
}

// CheckIn attaches owner and car details to a card scanned at the gate.
func (s *CarService) CheckIn(ctx context.Context, showID int64, token string, in CheckIn) (*models.Car, error) {
	car, err := s.CarByToken(ctx, showID, token)
	if err != nil {
		return nil, err
	}
	in = trimCheckIn(in)
	if in.Name == "" || in.Phone == "" || in.Email == "" || in.Year == "" || in.Make == "" || in.Model == "" {
		return nil, ErrMissingFields
	}

	owner := models.Person{Name: in.Name, Phone: in.Phone, Email: in.Email, OptInFuture: in.OptInFuture}
	if err := s.repo.CheckInCar(ctx, car.ID, owner, in.Year, in.Make, in.Model); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	s.log.Info("Car checked in", "show_id", showID, "car_number", car.CarNumber, "was_placeholder", car.IsPlaceholder())
	return s.repo.GetCar(ctx, car.ID)
}

// CarByToken resolves a card token within a show, including owner details.
func (s *CarService) CarByToken(ctx context.Context, showID int64, token string) (*models.Car, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrCarNotFound
	}
	car, err := s.repo.GetCarByToken(ctx, showID, token)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrCarNotFound
	}
	if err != nil {
		return nil, err
	}
	return car, nil
}

// PublicCar resolves a card token to the details shown on the vote page.
func (s *CarService) PublicCar(ctx context.Context, showID int64, token string) (*PublicCar, error) {
	car, err := s.CarByToken(ctx, showID, token)
	if err != nil {
		return nil, err
	}
	return &PublicCar{CarNumber: car.CarNumber, Year: car.Year, Make: car.Make, Model: car.Model}, nil
}

// ListCars returns every car in the show ordered by number.
func (s *CarService) ListCars(ctx context.Context, showID int64) ([]models.Car, error) {
	return s.repo.ListCars(ctx, showID)
}

// CreatePlaceholders pre-creates count cars numbered from start for printing
// cards before owners arrive. Numbers already in use are skipped.
func (s *CarService) CreatePlaceholders(ctx context.Context, sess *auth.Session, showID int64, start, count int) (int, error) {
	if err := sess.Check(s.clock()); err != nil {
		return 0, err
	}
	if start < 1 || count < 1 || count > MaxPlaceholders {
		return 0, ErrInvalidPlaceholderRange
	}

	created := 0
	for n := start; n < start+count; n++ {
		taken, err := s.repo.CarNumberTaken(ctx, showID, n)
		if err != nil {
			return created, err
		}
		if taken {
			continue
		}
		_, err = s.repo.CreateCar(ctx, models.Car{ShowID: showID, CarNumber: n, Token: s.newToken()})
		if stderrors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	s.log.Info("Placeholder cars created", "show_id", showID, "start", start, "count", count, "created", created)
	return created, nil
}

// MarkWaiverReceived records that the paper waiver for a car was collected.
func (s *CarService) MarkWaiverReceived(ctx context.Context, sess *auth.Session, showID, carID int64, receivedBy string) error {
	if err := sess.Check(s.clock()); err != nil {
		return err
	}
	car, err := s.repo.GetCar(ctx, carID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return ErrCarNotFound
	}
	if err != nil {
		return err
	}
	if car.ShowID != showID {
		return ErrCarNotFound
	}
	if receivedBy == "" {
		receivedBy = "admin"
	}
	return s.repo.MarkWaiverReceived(ctx, showID, carID, receivedBy)
}

// ListWaivers returns collected waivers for a show.
func (s *CarService) ListWaivers(ctx context.Context, showID int64) ([]models.Waiver, error) {
	return s.repo.ListWaivers(ctx, showID)
}

// VoteURL is the link a voter scans for one car and category.
func (s *CarService) VoteURL(showSlug, token string, category models.Category) string {
	return fmt.Sprintf("%s/v/%s/%s/%s", s.baseURL, url.PathEscape(showSlug), url.PathEscape(token), category.Slug)
}

// CheckInURL is the link an owner scans to claim a pre-printed card.
func (s *CarService) CheckInURL(showSlug, token string) string {
	return fmt.Sprintf("%s/checkin/%s/%s", s.baseURL, url.PathEscape(showSlug), url.PathEscape(token))
}

// VoteLinks returns every link printed on a car's card.
func (s *CarService) VoteLinks(showSlug string, car *models.Car) VoteLinks {
	links := VoteLinks{
		CarNumber:  car.CarNumber,
		CheckInURL: s.CheckInURL(showSlug, car.Token),
		Categories: make([]CategoryLink, 0, len(models.Categories)),
	}
	for _, c := range models.Categories {
		links.Categories = append(links.Categories, CategoryLink{Category: c, URL: s.VoteURL(showSlug, car.Token, c)})
	}
	return links
}

// QRCode renders a PNG QR code for a URL.
func (s *CarService) QRCode(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = QRSize
	}
	return qrcode.Encode(link, qrcode.Medium, size)
}

func trimRegistration(r Registration) Registration {
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.Year = strings.TrimSpace(r.Year)
	r.Make = strings.TrimSpace(r.Make)
	r.Model = strings.TrimSpace(r.Model)
	return r
}

func trimCheckIn(c CheckIn) CheckIn {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	c.Year = strings.TrimSpace(c.Year)
	c.Make = strings.TrimSpace(c.Make)
	c.Model = strings.TrimSpace(c.Model)
	return c
}
