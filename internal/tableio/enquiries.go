package tableio

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-delta/internal/model"
)

// ReadEnquiries decodes an enquiry CSV with columns customer_no,
// subscriber_name, loan_type and inquiry_date. Extra columns are ignored.
func ReadEnquiries(path string) ([]model.Enquiry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tableio: open enquiries %s", path)
	}
	defer f.Close() //nolint:errcheck
	return DecodeEnquiries(f)
}

// DecodeEnquiries decodes enquiry records from r.
func DecodeEnquiries(r io.Reader) ([]model.Enquiry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(cr)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "tableio: read enquiry header")
	}
	if missing := missingHeaders(dec.Header(), "customer_no"); len(missing) > 0 {
		return nil, eris.Errorf("tableio: enquiries missing columns %v", missing)
	}

	var out []model.Enquiry
	for {
		var e model.Enquiry
		if err := dec.Decode(&e); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "tableio: decode enquiry")
		}
		out = append(out, e)
	}
	return out, nil
}

func missingHeaders(header []string, required ...string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, r := range required {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	return missing
}
