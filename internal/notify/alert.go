package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/financeassistant/backend/internal/domain"
	"github.com/financeassistant/backend/internal/store"
)

// AlertService renders and queues anomaly alert mail for company owners.
// Notify returns as soon as the job is enqueued; a small worker pool does
// the lookups and the SMTP round trip.
type AlertService struct {
	store   *store.Store
	mailer  Mailer
	appName string

	queue  chan alertJob
	wg     sync.WaitGroup
	logger *log.Logger
	once   sync.Once
}

type alertJob struct {
	companyID int64
	anomalies []domain.Anomaly
}

// NewAlertService starts the worker pool.
func NewAlertService(st *store.Store, mailer Mailer, appName string, workers int) *AlertService {
	if workers <= 0 {
		workers = 2
	}
	a := &AlertService{
		store:   st,
		mailer:  mailer,
		appName: appName,
		queue:   make(chan alertJob, 256),
		logger:  log.New(log.Writer(), "[ALERT] ", log.LstdFlags),
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
	return a
}

// Notify enqueues one alert for the batch. A full queue drops the alert
// rather than blocking the anomaly consumer.
func (a *AlertService) Notify(companyID int64, anomalies []domain.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	select {
	case a.queue <- alertJob{companyID: companyID, anomalies: anomalies}:
	default:
		a.logger.Printf("alert queue full, dropping alert for company=%d", companyID)
	}
}

// Shutdown stops accepting jobs and drains the pool.
func (a *AlertService) Shutdown() {
	a.once.Do(func() { close(a.queue) })
	a.wg.Wait()
}

func (a *AlertService) worker() {
	defer a.wg.Done()
	for job := range a.queue {
		a.deliver(job)
	}
}

func (a *AlertService) deliver(job alertJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	company, err := a.store.FindCompanyByID(ctx, a.store.DB(), job.companyID)
	if err != nil || company == nil {
		a.logger.Printf("company %d not found, cannot send anomaly alert: %v", job.companyID, err)
		return
	}
	owner, err := a.ownerEmail(ctx, company)
	if err != nil {
		a.logger.Printf("owner lookup failed for company %d: %v", job.companyID, err)
		return
	}

	subject := buildSubject(a.appName, len(job.anomalies), company.Name)
	body := buildHTMLBody(a.appName, company, job.anomalies)
	if err := a.mailer.Send(owner, subject, body); err != nil {
		a.logger.Printf("anomaly alert mail failed for company=%d: %v", job.companyID, err)
		return
	}
	a.logger.Printf("anomaly alert sent to %s for company=%q (%d anomalies)",
		owner, company.Name, len(job.anomalies))
}

func (a *AlertService) ownerEmail(ctx context.Context, company *domain.Company) (string, error) {
	var email string
	err := a.store.DB().QueryRowContext(ctx,
		`SELECT email FROM users WHERE id = $1`, company.OwnerID).Scan(&email)
	if err != nil {
		return "", fmt.Errorf("load owner %d: %w", company.OwnerID, err)
	}
	return email, nil
}

func buildSubject(appName string, count int, companyName string) string {
	plural := ""
	if count != 1 {
		plural = "ies"
	} else {
		plural = "y"
	}
	return fmt.Sprintf("[%s] %d Anomal%s Detected in %s", appName, count, plural, companyName)
}

func buildHTMLBody(appName string, company *domain.Company, anomalies []domain.Anomaly) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString(fmt.Sprintf("<h2>Anomaly Alert — %s</h2>", company.Name))
	sb.WriteString(fmt.Sprintf("<p><strong>%d unusual transaction(s)</strong> detected by the anomaly detection engine.</p>", len(anomalies)))
	sb.WriteString("<ul>")
	for _, a := range anomalies {
		txnRef := "N/A"
		if a.TransactionID != nil {
			txnRef = fmt.Sprintf("#%d", *a.TransactionID)
		}
		sb.WriteString(fmt.Sprintf("<li>%s — transaction %s, detected %s</li>",
			formatAmount(a.Amount, company.Currency), txnRef,
			a.DetectedAt.Format("02 Jan 2006, 03:04 PM")))
	}
	sb.WriteString("</ul>")
	sb.WriteString("<p>Please review these transactions in your dashboard. If they look correct you can dismiss the alerts.</p>")
	sb.WriteString(fmt.Sprintf("<p style=\"color:#888;font-size:12px\">Automated alert from %s.</p>", appName))
	sb.WriteString("</body></html>")
	return sb.String()
}

func formatAmount(amount decimal.Decimal, currency string) string {
	switch strings.ToUpper(currency) {
	case "INR":
		return "₹" + amount.Abs().StringFixed(2)
	case "USD":
		return "$" + amount.Abs().StringFixed(2)
	default:
		return currency + " " + amount.Abs().StringFixed(2)
	}
}
