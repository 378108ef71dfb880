package wire

import "github.com/NGIOproject/NORNS-sub002/pkg/errs"

// EncodeResponse frames resp as a complete wire message: an 8-byte
// length header followed by its body (spec.md §4.1's encode).
func EncodeResponse(resp *Response) []byte {
	body := resp.Encode()
	hdr := EncodeHeader(len(body))
	out := make([]byte, 0, HeaderSize+len(body))
	out = append(out, hdr[:]...)
	out = append(out, body...)
	return out
}

// EncodeRequest frames req the same way, used by clients and by the
// remote-transfer initiator talking to an acceptor daemon.
func EncodeRequest(req *Request) []byte {
	body := req.Encode()
	hdr := EncodeHeader(len(body))
	out := make([]byte, 0, HeaderSize+len(body))
	out = append(out, hdr[:]...)
	out = append(out, body...)
	return out
}

// DecodeRequestBody decodes a request body, translating any malformed
// payload into the bad_request sentinel of spec.md §4.1.
func DecodeRequestBody(body []byte) (*Request, *errs.Error) {
	req, err := DecodeRequest(body)
	if err != nil {
		return nil, errs.Wrap(errs.BadRequest, err)
	}
	return req, nil
}

// DecodeResponseBody decodes a response body with the same contract.
func DecodeResponseBody(body []byte) (*Response, *errs.Error) {
	resp, err := DecodeResponse(body)
	if err != nil {
		return nil, errs.Wrap(errs.BadRequest, err)
	}
	return resp, nil
}
