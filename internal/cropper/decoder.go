package cropper

import (
	"context"
	"expvar"
	"fmt"
	"image"

	"github.com/DMarby/picsum-editor/internal/format"
	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/queue"
	"github.com/DMarby/picsum-editor/internal/tracing"
)

var (
	queueSize     = expvar.NewInt("gauge_image_decoder_queue_size")
	decodedImages = expvar.NewMap("counter_labelmap_format_image_decoder_decoded_images")
)

// Decoder decodes images on a fixed amount of workers
type Decoder struct {
	queue  *queue.Queue
	tracer *tracing.Tracer
}

type decoded struct {
	img  *image.NRGBA
	mime string
}

// NewDecoder starts a decoder with the given amount of workers, it shuts down when ctx is done
func NewDecoder(ctx context.Context, log *logger.Logger, tracer *tracing.Tracer, workers int) *Decoder {
	workerQueue := queue.New(ctx, workers, decode)
	go workerQueue.Run()

	log.Infof("starting image decoder queue with %d workers", workers)

	return &Decoder{
		queue:  workerQueue,
		tracer: tracer,
	}
}

// Decode decodes an encoded image and returns it together with its MIME type
func (d *Decoder) Decode(ctx context.Context, data []byte) (*image.NRGBA, string, error) {
	ctx, span := d.tracer.Start(ctx, "cropper.Decoder.Decode")
	defer span.End()

	queueSize.Add(1)
	defer queueSize.Add(-1)

	result, err := d.queue.Process(ctx, data)
	if err != nil {
		return nil, "", err
	}

	img, ok := result.(decoded)
	if !ok {
		return nil, "", fmt.Errorf("error getting result")
	}

	decodedImages.Add(img.mime, 1)

	return img.img, img.mime, nil
}

func decode(ctx context.Context, data interface{}) (interface{}, error) {
	buf, ok := data.([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid data")
	}

	img, mime, err := format.Decode(buf)
	if err != nil {
		return nil, err
	}

	return decoded{img, mime}, nil
}
