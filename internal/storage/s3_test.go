package storage

import "testing"

func TestFolderPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"folder-a", "folder-a/"},
		{" folder-a ", "folder-a/"},
		{"/folder-a/", "folder-a/"},
		{"nested/folder", "nested/folder/"},
		{"", ""},
		{"  ", ""},
	}
	for _, tc := range tests {
		if got := folderPrefix(tc.in); got != tc.want {
			t.Errorf("folderPrefix(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestObjectURLVirtualHosted(t *testing.T) {
	s := &S3Store{cfg: S3Config{Bucket: "assets", Region: "eu-west-1"}}

	got := s.ObjectURL("folder-a", "pic.webp")
	want := "https://assets.s3.eu-west-1.amazonaws.com/folder-a/pic.webp"
	if got != want {
		t.Fatalf("ObjectURL() = %q, want %q", got, want)
	}
}

func TestObjectURLDefaultRegion(t *testing.T) {
	s := &S3Store{cfg: S3Config{Bucket: "assets"}}

	got := s.ObjectURL("folder-a", "pic.webp")
	want := "https://assets.s3.us-east-1.amazonaws.com/folder-a/pic.webp"
	if got != want {
		t.Fatalf("ObjectURL() = %q, want %q", got, want)
	}
}

func TestObjectURLCustomEndpoint(t *testing.T) {
	s := &S3Store{cfg: S3Config{Bucket: "assets", Endpoint: "http://localhost:9000/"}}

	got := s.ObjectURL("folder-a", "pic.webp")
	want := "http://localhost:9000/assets/folder-a/pic.webp"
	if got != want {
		t.Fatalf("ObjectURL() = %q, want %q", got, want)
	}
}

func TestS3ConfigValidate(t *testing.T) {
	if err := (S3Config{}).Validate(); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if err := (S3Config{Bucket: "assets"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
