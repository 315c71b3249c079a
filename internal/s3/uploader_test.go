package s3

import "testing"

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name string
		u    Uploader
		want string
	}{
		{"cloudfront", Uploader{Bucket: "b", Region: "eu-west-1", CloudFrontDomain: "cdn.example.com"}, "https://cdn.example.com/reports/r.json"},
		{"endpoint", Uploader{Bucket: "b", Endpoint: "http://localhost:9000"}, "http://localhost:9000/b/reports/r.json"},
		{"aws", Uploader{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com/reports/r.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.u.ObjectURL("reports/r.json"); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
