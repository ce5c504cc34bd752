package reservation

import "github.com/valyala/fastrand"

// Denylist holds seat ids with known faulty hardware; auto mode never claims them.
var Denylist = map[string]struct{}{}

func init() {
	for _, id := range []string{
		"7443", "7448", "7453", "7458", "7463", "7468", "7473", "7478", "7483", "7488", "7493", "7498", "7503",
		"7508", "7513", "7518", "7572", "7575", "7578", "7581", "7584", "7587", "7590", "7785", "7788", "7791",
		"7794", "7797", "7800", "7803", "7806", "7291", "7296", "7301", "7306", "7311", "7316", "7321", "7326",
		"7331", "7336", "7341", "7346", "7351", "7356", "7361", "7366", "7369", "7372", "7375", "7378", "7381",
		"7384", "7387", "7390", "7417", "7420", "7423", "7426", "7429", "7432", "7435", "7438", "7115", "7120",
		"7125", "7130", "7135", "7140", "7145", "7150", "7155", "7160", "7165", "7170", "7175", "7180", "7185",
		"7190", "7241", "7244", "7247", "7250", "7253", "7256", "7259", "7262", "7761", "7764", "7767", "7770",
		"7773", "7776", "7779", "7782",
	} {
		Denylist[id] = struct{}{}
	}
}

// Candidates returns the seats a mode may claim. ModeAuto drops denylisted ids.
func Candidates(mode Mode, seats []Seat, deny map[string]struct{}) []Seat {
	if mode != ModeAuto || len(deny) == 0 {
		return seats
	}
	out := make([]Seat, 0, len(seats))
	for _, s := range seats {
		if _, blocked := deny[s.ID]; blocked {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ChooseSeat picks one candidate uniformly at random.
func ChooseSeat(candidates []Seat) (Seat, bool) {
	if len(candidates) == 0 {
		return Seat{}, false
	}
	return candidates[fastrand.Uint32n(uint32(len(candidates)))], true
}
