package jpegls

import "image"

// encodeRun encodes a Run Mode segment (ISO 14495-1 A.7): a maximal run
// of pixels matching Ra, followed by the interruption sample that ended
// it.
func (e *Encoder) encodeRun(img image.Image, currLine []int, x *int, y int, Ra, Rb int) error {
	width := e.params.Width

	runLength := 0
	for *x < width {
		if currLine[*x] != Ra {
			break
		}
		runLength++
		*x++
	}

	for {
		j := e.context.J[e.context.RunIndex]
		limit := 1 << j

		if runLength >= limit {
			if err := e.bw.WriteBit(1); err != nil {
				return err
			}
			runLength -= limit
			if e.context.RunIndex < 31 {
				e.context.RunIndex++
			}
			continue
		}

		if err := e.bw.WriteBit(0); err != nil {
			return err
		}
		if err := e.bw.WriteBits(uint32(runLength), j); err != nil {
			return err
		}
		if e.context.RunIndex > 0 {
			e.context.RunIndex--
		}

		if *x == width {
			return nil
		}

		Ix := currLine[*x]
		Px := Ra
		sign := 1
		if Ra != Rb {
			Px = Rb
			if Ra > Rb {
				sign = -1
			}
		}
		errVal := Ix - Px
		if sign == -1 {
			errVal = -errVal
		}

		maxVal := e.context.MaxVal
		rangeVal := maxVal + 1
		if errVal < -rangeVal/2 {
			errVal += rangeVal
		}
		if errVal > rangeVal/2 {
			errVal -= rangeVal
		}

		q := 365
		if Ra != Rb {
			q = 366
		}

		var mappedErrVal uint32
		if errVal >= 0 {
			mappedErrVal = uint32(2 * errVal)
		} else {
			mappedErrVal = uint32(-2*errVal - 1)
		}

		k := e.context.ComputeK(q)
		if err := e.bw.WriteGolomb(k, mappedErrVal); err != nil {
			return err
		}
		e.context.UpdateStats(q, errVal)

		*x++
		return nil
	}
}
