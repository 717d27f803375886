/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package nats

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/systemorph/meshweaver/address"
	"github.com/systemorph/meshweaver/hub"
)

const (
	headerDeliveryID = "Mesh-Delivery-Id"
	headerSender     = "Mesh-Sender"
	headerTarget     = "Mesh-Target"
	headerProperty   = "Mesh-Prop-"
)

// encode turns a delivery into a NATS message.
// The payload travels as a binary google.protobuf.Any; routing data travels in headers.
func encode(subject string, delivery *hub.Delivery) (*nats.Msg, error) {
	payload, err := anypb.New(delivery.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to pack message=(%s): %w", delivery.ID, err)
	}

	data, err := proto.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message=(%s): %w", delivery.ID, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(headerDeliveryID, delivery.ID)
	msg.Header.Set(headerTarget, delivery.Target.String())
	if !delivery.Sender.IsZero() {
		msg.Header.Set(headerSender, delivery.Sender.String())
	}

	for key, value := range delivery.Properties {
		msg.Header.Set(headerProperty+key, value)
	}
	return msg, nil
}

// decode rebuilds the delivery carried by a NATS message
func decode(header nats.Header, data []byte, sequence uint64) (*hub.Delivery, error) {
	payload := new(anypb.Any)
	if err := proto.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	message, err := payload.UnmarshalNew()
	if err != nil {
		return nil, fmt.Errorf("failed to unpack payload of type %s: %w", payload.GetTypeUrl(), err)
	}

	target, err := address.Parse(header.Get(headerTarget))
	if err != nil {
		return nil, err
	}

	delivery := &hub.Delivery{
		ID:       header.Get(headerDeliveryID),
		Target:   target,
		Message:  message,
		Sequence: sequence,
	}

	if sender := header.Get(headerSender); sender != "" {
		if delivery.Sender, err = address.Parse(sender); err != nil {
			return nil, err
		}
	}

	for key, values := range header {
		if name, ok := strings.CutPrefix(key, headerProperty); ok && len(values) > 0 {
			if delivery.Properties == nil {
				delivery.Properties = make(map[string]string)
			}
			delivery.Properties[name] = values[0]
		}
	}
	return delivery, nil
}

// subject maps a namespace onto a subject under prefix.
// '/' separates subject tokens; characters NATS reserves are replaced with '_'.
func subject(prefix, namespace string) string {
	tokens := strings.Split(namespace, "/")
	for i, token := range tokens {
		token = strings.Map(func(r rune) rune {
			switch r {
			case '.', '*', '>', ' ', '\t', '\r', '\n':
				return '_'
			default:
				return r
			}
		}, token)
		if token == "" {
			token = "_"
		}
		tokens[i] = token
	}
	return prefix + "." + strings.Join(tokens, ".")
}
