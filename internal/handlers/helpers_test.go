// helpers_test.go
package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go_5_habit_keep/internal/model"
)

// httpRequestDetails はHTTPリクエストの送信に必要な情報をまとめます。
type httpRequestDetails struct {
	Method  string
	Path    string
	Body    interface{}
	Headers map[string]string
}

// httpResponseExpectations はHTTPレスポンスの検証に必要な期待値をまとめます。
type httpResponseExpectations struct {
	ExpectedCode int
}

// sendRequest はHTTPリクエストを送信し、基本的なレスポンス情報を返します。
// ステータスコードのアサーションもここで行います。
func sendRequest(t *testing.T, server *httptest.Server, details httpRequestDetails, expectations httpResponseExpectations) (int, []byte) {
	t.Helper()

	var reqBodyReader io.Reader
	if details.Body != nil {
		if strPayload, ok := details.Body.(string); ok {
			reqBodyReader = strings.NewReader(strPayload)
		} else {
			reqBodyBytes, err := json.Marshal(details.Body)
			require.NoError(t, err, "Failed to marshal request body")
			reqBodyReader = bytes.NewBuffer(reqBodyBytes)
		}
	}

	req, err := http.NewRequest(details.Method, server.URL+details.Path, reqBodyReader)
	require.NoError(t, err, "Failed to create request")

	if details.Body != nil && reqBodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range details.Headers {
		req.Header.Set(key, value)
	}

	client := server.Client()
	resp, err := client.Do(req)
	require.NoError(t, err, "Failed to execute request")
	defer resp.Body.Close()

	assert.Equal(t, expectations.ExpectedCode, resp.StatusCode, "Status code mismatch")

	respBodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "Failed to read response body")

	return resp.StatusCode, respBodyBytes
}

// authHeader は Bearer トークン付きのヘッダーマップを作ります。
func authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// verifyErrorResponse はエラーレスポンスのエラーコードを検証します。
func verifyErrorResponse(t *testing.T, logger *slog.Logger, bodyBytes []byte, expectedCode string, tcName string) {
	t.Helper()
	if expectedCode == "" {
		return
	}

	var errResp model.APIErrorResponse
	err := json.Unmarshal(bodyBytes, &errResp)
	if err == nil {
		assert.Equal(t, expectedCode, errResp.Error.Code,
			"Expected error code '%s' for test case '%s', got '%s' (message: %s)",
			expectedCode, tcName, errResp.Error.Code, errResp.Error.Message)
	} else {
		logger.Warn("Error response body not valid APIErrorResponse JSON.",
			slog.String("test_case", tcName),
			slog.Any("unmarshal_error", err),
			slog.String("body_preview", string(bodyBytes[:minInt(len(bodyBytes), 200)])),
		)
		assert.True(t, strings.Contains(string(bodyBytes), expectedCode),
			"Expected error code '%s' in raw body '%s' for test case '%s'", expectedCode, string(bodyBytes), tcName)
	}
}

// clearTable は指定されたモデルのテーブルデータをクリアします。
func clearTable(t *testing.T, db *gorm.DB, modelInstance interface{}) {
	t.Helper()
	err := db.Unscoped().Where("1 = 1").Delete(modelInstance).Error
	require.NoError(t, err, fmt.Sprintf("Failed to clear table for model %T", modelInstance))
}

// minInt は2つのintのうち小さい方を返します。
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
