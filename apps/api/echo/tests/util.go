package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/hocsinh/apps/api/echo"
	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/location"
	"github.com/trezcool/hocsinh/core/otp"
	"github.com/trezcool/hocsinh/core/student"
	appfs "github.com/trezcool/hocsinh/fs"
	emailsvc "github.com/trezcool/hocsinh/services/email"
	exportsvc "github.com/trezcool/hocsinh/services/export"
	sqlxrepos "github.com/trezcool/hocsinh/storage/database/sqlx"
	"github.com/trezcool/hocsinh/storage/database"
	testutil "github.com/trezcool/hocsinh/tests"
)

const (
	adminEmail    = "admin@test.vn"
	adminPassword = "password123"
)

var (
	errMissingToken = httpErr{Error: "Chưa đăng nhập quản trị"}
)

type testApp struct {
	Server
	conf *core.Config
	repo student.Repository
	dir  string
}

type stubSource struct {
	table *location.Table
}

func (s stubSource) Load(context.Context) (*location.Table, error) {
	return s.table, nil
}

var locationTable = &location.Table{
	Source: "csv",
	Header: []string{"STT", "Mã vùng", "Mã tỉnh (BNV)", "Tên tỉnh/TP mới", "", "", "", "", "Mã phường/xã mới", "Tên Phường/Xã mới"},
	Rows: [][]string{
		{"1", "", "75", "Đồng Nai", "", "", "", "", "26041", "Phường Trảng Dài"},
		{"2", "", "79", "Tp Hồ Chí Minh", "", "", "", "", "26734", "Phường Bến Thành"},
	},
}

func setup(t *testing.T, options ...func(conf *core.Config)) testApp {
	conf := testutil.NewConfig()
	conf.Export.Dir = t.TempDir()
	for _, opt := range options {
		opt(conf)
	}
	logger := testutil.NewLogger(conf)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewStudentRepository(db, database.SQLite)

	// set up services
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	gate := otp.NewGate(otp.NewMemoryStore(), conf.OTP.TTL, conf.Server.SessionTTL)

	cleaner := exportsvc.NewCleaner(conf.Export.CleanupDelay, logger)
	t.Cleanup(cleaner.Stop)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// set up server
	srv := NewServer(
		ServerDeps{
			Conf:           conf,
			Logger:         logger,
			StudentSvc:     student.NewService(db, repo, logger),
			OTPSvc:         otp.NewService(gate, mailSvc, conf, logger),
			Catalog:        location.NewCatalog(stubSource{table: locationTable}, location.NewCache(), logger),
			Renderer:       exportsvc.NewRenderer(conf, logger),
			Cleaner:        cleaner,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)
	return testApp{Server: srv, conf: conf, repo: repo, dir: conf.Export.Dir}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// getToken returns a token for a fresh session of `email`.
func getToken(t *testing.T, conf *core.Config, email string) string {
	now := time.Now()
	sess := otp.Session{Email: email, LoginTime: now, Expiry: now.Add(conf.Server.SessionTTL)}
	token, err := GenerateToken(NewClaims(sess, conf), conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, data []byte) map[string]interface{} {
	obj := make(map[string]interface{})
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("unmarchallObj() failed: %v; data %s", err, data)
	}
	return obj
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
