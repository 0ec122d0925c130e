// Package imageapi is the HTTP client for the image generation server (api.py).
//
// # Overview
//
// The server exposes a two-endpoint job protocol:
//
//	POST /text_to_image   {"prompt", "n_images", "n_inf_steps", "stream_freq"?} -> {"job_id"}
//	GET  /jobs/{job_id}/  -> {"finished": bool, "response": [{"t", "total_t", "img", "latent"?}]}
//
// Client.Generate submits one request, polls the job resource until the server
// reports it finished, then decodes every base64 image in the final response.
//
// # Polling
//
// The first poll is immediate and later polls follow the configured interval
// (default 2s). Polling stops on the first status with finished=true; no
// further requests are made for that job. While the job runs, the first frame
// of the response carries the step counter; it is surfaced through the
// WithProgress hook. Polls without a usable counter are retried silently.
// Reported progress never goes backwards and never exceeds total_t.
//
// Generate honours its context and, when WithJobTimeout is set, a per-job
// deadline. The only automatic retry is a status poll that hits the per-request
// HTTP timeout: a single-process server busy sampling can stall status
// requests, so the poll is repeated on the next tick until the job deadline.
// Every other failure goes straight back to the caller.
//
// # Errors
//
//   - ErrConnectivity: the server could not be reached (nothing listening,
//     DNS failure, connection reset, a request timeout outside polling).
//     Callers should tell the user to start it.
//   - ErrRequestFailed: the server answered with a non-2xx status, or with no
//     job id. *RequestError carries the path and status.
//   - ErrDecode: a finished job carried an undecodable image. *DecodeError
//     names the index. No partial results are returned.
//   - ErrInvalidRequest: empty prompt or non-positive counts, rejected before
//     any request is sent.
//   - context.Canceled / context.DeadlineExceeded pass through unchanged.
//
// # Usage Example
//
//	client, err := imageapi.NewClient("127.0.0.1:5001", imageapi.WithJobTimeout(10*time.Minute))
//	if err != nil {
//		return err
//	}
//	images, err := client.Generate(ctx,
//		imageapi.GenerationRequest{Prompt: "a red circle", Images: 1, Steps: 50},
//		imageapi.WithProgress(func(p imageapi.Progress) { log.Printf("Progress: %s", p) }),
//	)
package imageapi
