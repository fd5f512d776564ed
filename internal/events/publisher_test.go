package events

import "testing"

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	p.Publish(SubjectExtractionStarted, map[string]string{"k": "v"})
	p.Close()
}
