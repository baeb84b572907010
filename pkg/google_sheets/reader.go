package google_sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/empbudget/budgetgrid/pkg/spreadsheet"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var ErrNotConfigured = errors.New("google sheets import is not configured")

type Reader interface {
	// ReadRows reads sheetRange (A1 notation, e.g. "Budget!A1:I") and keys every row
	// by the header text found in the first row of the range.
	ReadRows(ctx context.Context, spreadsheetId string, sheetRange string) ([]map[string]string, error)
}

type ReaderImpl struct {
	service *sheets.Service
}

// NewReader authenticates with a service account key file.
func NewReader(ctx context.Context, credentialsFile string) (*ReaderImpl, error) {
	if credentialsFile == "" {
		return nil, ErrNotConfigured
	}
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		err := fmt.Errorf("unable to read google credentials file: %w", err)
		log.Error(err)
		return nil, err
	}
	jwtConfig, err := google.JWTConfigFromJSON(credentials, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		err := fmt.Errorf("unable to parse google credentials: %w", err)
		log.Error(err)
		return nil, err
	}
	return NewReaderWithOptions(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
}

func NewReaderWithOptions(ctx context.Context, opts ...option.ClientOption) (*ReaderImpl, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		err := fmt.Errorf("unable to create google sheets client: %w", err)
		log.Error(err)
		return nil, err
	}
	return &ReaderImpl{service: service}, nil
}

func (r *ReaderImpl) ReadRows(ctx context.Context, spreadsheetId string, sheetRange string) ([]map[string]string, error) {
	log.Debugf("Reading google sheet %s range %s", spreadsheetId, sheetRange)
	values, err := r.service.Spreadsheets.Values.Get(spreadsheetId, sheetRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		err := fmt.Errorf("unable to read google sheet %s: %w", spreadsheetId, err)
		log.Error(err)
		return nil, err
	}
	return spreadsheet.KeyByHeader(toTable(values.Values)), nil
}

func toTable(values [][]interface{}) [][]string {
	table := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, value := range row {
			switch v := value.(type) {
			case nil:
			case string:
				cells[j] = v
			case float64:
				cells[j] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				cells[j] = fmt.Sprint(v)
			}
		}
		table[i] = cells
	}
	return table
}
