package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/OFFIS-RIT/segbench/pkg/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func testClient(endpoint string) *s3.Client {
	return s3.New(s3.Options{
		Region:       "eu-central-1",
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("key", "secret", ""),
	})
}

func TestExportKey(t *testing.T) {
	got := ExportKey("r1", time.UnixMilli(1700000000123))
	want := "exports/r1/批量分词评测结果-1700000000123.json"
	if got != want {
		t.Fatalf("ExportKey = %q, want %q", got, want)
	}
}

func TestPutExport(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exports := NewExports(NewExportsParams{Client: testClient(srv.URL), Bucket: "segbench"})
	data := &common.BatchComparisonData{Summary: common.BatchSummary{KeyInsights: "MGeo 更准确"}}

	key, err := exports.PutExport(context.Background(), "r1", data, time.UnixMilli(42))
	if err != nil {
		t.Fatalf("PutExport: %v", err)
	}
	if key != "exports/r1/批量分词评测结果-42.json" {
		t.Fatalf("key = %q", key)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("method = %s", gotMethod)
	}
	wantPath := "/segbench/" + key
	if gotPath != wantPath {
		t.Fatalf("path = %q, want %q", gotPath, wantPath)
	}
	if !strings.Contains(string(gotBody), "MGeo 更准确") {
		t.Fatalf("body does not carry the export: %s", gotBody)
	}
}

func TestDownloadLink(t *testing.T) {
	exports := NewExports(NewExportsParams{
		Client:         testClient("http://minio:9000"),
		Bucket:         "segbench",
		PublicEndpoint: "https://files.example.com/s3/",
	})

	link, err := exports.DownloadLink(context.Background(), "exports/r1/a.json")
	if err != nil {
		t.Fatalf("DownloadLink: %v", err)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if u.Host != "files.example.com" {
		t.Fatalf("host = %s", u.Host)
	}
	if u.Path != "/s3/segbench/exports/r1/a.json" {
		t.Fatalf("path = %s", u.Path)
	}
	if u.Query().Get("X-Amz-Signature") == "" {
		t.Fatal("link is not signed")
	}
}

func TestDownloadLinkInvalidEndpoint(t *testing.T) {
	exports := NewExports(NewExportsParams{
		Client:         testClient("http://minio:9000"),
		Bucket:         "segbench",
		PublicEndpoint: "not a url",
	})
	if _, err := exports.DownloadLink(context.Background(), "k"); err == nil {
		t.Fatal("expected an error")
	}
}
