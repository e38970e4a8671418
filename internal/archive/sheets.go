// Package archive appends generated newsletters to a Google Sheets spreadsheet.
package archive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/newsletter-agent/internal/config"
	"github.com/newsletter-agent/internal/models"
	"github.com/newsletter-agent/pkg/logger"
)

// DefaultSheetName is used when the config leaves sheet_name empty
const DefaultSheetName = "Newsletters"

// maxCellChars is the Sheets limit for a single cell
const maxCellChars = 50000

// Columns defines the column headers of the archive sheet
var Columns = []string{
	"ID",
	"Date",
	"Articles",
	"Titles",
	"URLs",
	"Podcast",
	"Audio URL",
	"Content",
}

// SheetsExporter writes one row per newsletter
type SheetsExporter struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *logger.Logger

	initMu      sync.Mutex
	initialized bool
}

// NewSheetsExporter connects to the Sheets API. Credentials are taken from
// the service account JSON, the credentials file or a static access token, in
// that order. Extra options are appended after the credentials.
func NewSheetsExporter(ctx context.Context, cfg config.ArchiveConfig, log *logger.Logger, opts ...option.ClientOption) (*SheetsExporter, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("archive spreadsheet_id is required")
	}

	var clientOpts []option.ClientOption
	switch {
	case cfg.ServiceAccountJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.AccessToken != "":
		clientOpts = append(clientOpts, option.WithTokenSource(
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}),
		))
	default:
		return nil, fmt.Errorf("no Google credentials provided: set credentials_file, service_account_json or access_token")
	}
	clientOpts = append(clientOpts, opts...)

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	return &SheetsExporter{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		log:           log.WithComponent("archive"),
	}, nil
}

// Export appends the newsletter as a new row
func (e *SheetsExporter) Export(ctx context.Context, newsletter *models.Newsletter) error {
	if err := e.ensureInitialized(ctx); err != nil {
		return err
	}

	row := newsletterRow(newsletter)
	writeRange := fmt.Sprintf("%s!A:%s", e.sheetName, columnLetter(len(Columns)))

	_, err := e.service.Spreadsheets.Values.Append(e.spreadsheetID, writeRange, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append newsletter row: %w", err)
	}

	e.log.WithNewsletterID(newsletter.ID).Info().Msg("Newsletter archived to sheet")
	return nil
}

// ensureInitialized prepares the sheet once. A failed attempt is retried on
// the next export.
func (e *SheetsExporter) ensureInitialized(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.initialized {
		return nil
	}
	if err := e.initializeSheet(ctx); err != nil {
		return err
	}
	e.initialized = true
	return nil
}

// initializeSheet creates the sheet and headers if they don't exist
func (e *SheetsExporter) initializeSheet(ctx context.Context) error {
	if err := e.ensureSheetExists(ctx); err != nil {
		return err
	}

	readRange := fmt.Sprintf("%s!A1:%s1", e.sheetName, columnLetter(len(Columns)))
	resp, err := e.service.Spreadsheets.Values.Get(e.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}

	e.log.Info().Msg("Initializing sheet with headers")
	header := make([]interface{}, len(Columns))
	for i, col := range Columns {
		header[i] = col
	}
	_, err = e.service.Spreadsheets.Values.Update(e.spreadsheetID, readRange, &sheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	return nil
}

// ensureSheetExists creates the sheet if it doesn't exist
func (e *SheetsExporter) ensureSheetExists(ctx context.Context) error {
	spreadsheet, err := e.service.Spreadsheets.Get(e.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == e.sheetName {
			return nil
		}
	}

	e.log.Info().Str("sheet", e.sheetName).Msg("Creating new sheet")
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: e.sheetName,
					},
				},
			},
		},
	}
	if _, err := e.service.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	return nil
}

func newsletterRow(n *models.Newsletter) []interface{} {
	titles := make([]string, 0, len(n.Articles))
	urls := make([]string, 0, len(n.Articles))
	for _, entry := range n.Articles {
		titles = append(titles, entry.Title)
		urls = append(urls, entry.URL)
	}

	podcast := ""
	if n.Podcast != nil {
		podcast = n.Podcast.Title
	}

	content := truncateCell(n.Content)

	return []interface{}{
		n.ID,
		n.Date.Format(time.RFC3339),
		len(n.Articles),
		strings.Join(titles, "\n"),
		strings.Join(urls, "\n"),
		podcast,
		n.AudioURL,
		content,
	}
}

// truncateCell cuts s to maxCellChars characters without splitting a rune
func truncateCell(s string) string {
	if utf8.RuneCountInString(s) <= maxCellChars {
		return s
	}
	return string([]rune(s)[:maxCellChars])
}

// columnLetter converts a 1-based column number to a letter (1=A, 27=AA)
func columnLetter(n int) string {
	result := ""
	for n > 0 {
		n--
		result = string(rune('A'+n%26)) + result
		n /= 26
	}
	return result
}
