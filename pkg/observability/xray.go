package observability

import (
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"
)

// InstrumentAWS adds X-Ray subsegments to every call made with clients built from cfg
func InstrumentAWS(cfg *aws.Config) {
	awsv2.AWSV2Instrumentor(&cfg.APIOptions)
}

// XRayHandler wraps h so each request opens an X-Ray segment named name
func XRayHandler(name string, h http.Handler) http.Handler {
	return xray.Handler(xray.NewFixedSegmentNamer(name), h)
}
