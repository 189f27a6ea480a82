// Package connectors holds the input side of ingestion: components that find
// documents to feed the pipeline.
package connectors
